package reactive

import (
	"sort"
	"sync"
	"time"
)

// manualScheduler 虚拟时间调度器，Advance 时同步执行到期任务
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	s        *manualScheduler
	at       time.Duration
	seq      int
	f        func()
	canceled bool
	fired    bool
}

func (t *manualTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.canceled {
		return false
	}
	t.canceled = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{s: s, at: s.now + d, seq: s.seq, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance 推进虚拟时间并执行到期任务
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()

	for {
		t := s.nextDue()
		if t == nil {
			return
		}
		t.f()
	}
}

// Pending 未执行且未取消的任务数
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.canceled {
			n++
		}
	}
	return n
}

func (s *manualScheduler) nextDue() *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*manualTask
	for _, t := range s.tasks {
		if !t.fired && !t.canceled && t.at <= s.now {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	due[0].fired = true
	return due[0]
}
