package reactive

import (
	"sync"

	"github.com/paiban/rostercheck/pkg/model"
	"github.com/paiban/rostercheck/pkg/validator"
)

// AssignmentWatcher 监视单个候选分配，在让出执行后计算结果
type AssignmentWatcher struct {
	v         *validator.Validator
	scheduler Scheduler

	mu          sync.Mutex
	pending     Task
	generation  uint64
	latest      *validator.SingleResult
	subscribers []func(validator.SingleResult)
}

// NewAssignmentWatcher 创建单分配监视器
func NewAssignmentWatcher(v *validator.Validator, scheduler Scheduler) *AssignmentWatcher {
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	return &AssignmentWatcher{v: v, scheduler: scheduler}
}

// Watch 监视新的候选分配，覆盖尚未计算的上一个；传入 nil 清除结果
func (w *AssignmentWatcher) Watch(a *model.Assignment) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.generation++
	if w.pending != nil {
		w.pending.Cancel()
		w.pending = nil
	}
	if a == nil {
		w.latest = nil
		return
	}

	gen := w.generation
	candidate := *a
	w.pending = w.scheduler.AfterFunc(0, func() {
		w.run(gen, &candidate)
	})
}

// Latest 返回最近的结果
func (w *AssignmentWatcher) Latest() (validator.SingleResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return validator.SingleResult{}, false
	}
	return *w.latest, true
}

// Subscribe 订阅新结果
func (w *AssignmentWatcher) Subscribe(fn func(validator.SingleResult)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

func (w *AssignmentWatcher) run(gen uint64, a *model.Assignment) {
	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.mu.Unlock()

	result := w.v.ValidateAssignment(a).Single()

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.latest = &result
	subscribers := make([]func(validator.SingleResult), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	for _, fn := range subscribers {
		fn(result)
	}
}
