package reactive

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/logger"
	"github.com/paiban/rostercheck/pkg/validator"
)

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 500 * time.Millisecond

// 控制器状态
const (
	StateIdle       = "idle"
	StatePending    = "pending"
	StateValidating = "validating"
)

// 状态事件
const (
	eventSchedule = "schedule"
	eventStart    = "start"
	eventFinish   = "finish"
	eventCancel   = "cancel"
)

// Change 上游数据变更
type Change struct {
	Update   validator.ContextUpdate
	Mutation cache.Mutation // 为空时由更新内容推断
}

// Controller 自动校验控制器
// 数据变更后防抖一段时间再校验，新的变更会取消尚未执行的校验并丢弃过期结果
type Controller struct {
	v         *validator.Validator
	scheduler Scheduler
	debounce  time.Duration
	options   validator.Options
	log       zerolog.Logger

	mu           sync.Mutex
	autoValidate bool
	closed       bool
	pending      Task
	generation   uint64
	inFlight     int
	latest       *validator.Result
	subscribers  map[int]func(*validator.Result)
	nextSubID    int
	lifecycle    *fsm.FSM
}

// ControllerOption 控制器选项
type ControllerOption func(*Controller)

// WithScheduler 指定调度器
func WithScheduler(s Scheduler) ControllerOption {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithDebounce 指定防抖时间
func WithDebounce(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithAutoValidate 设置是否自动校验
func WithAutoValidate(enabled bool) ControllerOption {
	return func(c *Controller) {
		c.autoValidate = enabled
	}
}

// WithValidateOptions 指定自动校验使用的选项
func WithValidateOptions(opts validator.Options) ControllerOption {
	return func(c *Controller) {
		c.options = opts
	}
}

// WithLogger 指定日志器
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// NewController 创建自动校验控制器
func NewController(v *validator.Validator, opts ...ControllerOption) *Controller {
	c := &Controller{
		v:            v,
		scheduler:    RealScheduler{},
		debounce:     DefaultDebounce,
		autoValidate: true,
		log:          logger.Get().With().Str("component", "reactive").Logger(),
		subscribers:  make(map[int]func(*validator.Result)),
		lifecycle: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventSchedule, Src: []string{StateIdle, StatePending, StateValidating}, Dst: StatePending},
				{Name: eventStart, Src: []string{StateIdle, StatePending}, Dst: StateValidating},
				{Name: eventFinish, Src: []string{StateValidating}, Dst: StateIdle},
				{Name: eventCancel, Src: []string{StatePending}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.debounce < 0 {
		c.debounce = 0
	}
	return c
}

// Notify 接收数据变更：更新上下文、按变更类型失效缓存并重新开始防抖计时
func (c *Controller) Notify(change Change) {
	mutation := change.Mutation
	if mutation == "" {
		mutation = change.Update.Mutation()
	}

	c.v.ApplyChange(change.Update, mutation)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.closed || !c.autoValidate {
		return
	}
	c.scheduleLocked(c.debounce)
}

// Validate 取消待执行的校验并立即校验
func (c *Controller) Validate() *validator.Result {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	return c.run(gen)
}

// ForceRevalidate 清空缓存后立即校验
func (c *Controller) ForceRevalidate() *validator.Result {
	if cc := c.v.Cache(); cc != nil {
		cc.Clear()
	}
	return c.Validate()
}

// Latest 返回最近一次发布的结果
func (c *Controller) Latest() *validator.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// IsValidating 是否有校验正在运行
func (c *Controller) IsValidating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// State 返回当前状态 idle/pending/validating
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle.Current()
}

// AutoValidate 是否自动校验
func (c *Controller) AutoValidate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoValidate
}

// SetAutoValidate 开关自动校验，关闭时取消待执行的校验
func (c *Controller) SetAutoValidate(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoValidate = enabled
	if !enabled {
		c.cancelPendingLocked()
	}
}

// Subscribe 订阅新结果，返回取消订阅函数
func (c *Controller) Subscribe(fn func(*validator.Result)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Close 停止控制器，之后的变更不再触发校验
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
	c.cancelPendingLocked()
}

// scheduleLocked 安排一次延迟校验，替换已有的待执行任务
func (c *Controller) scheduleLocked(delay time.Duration) {
	if c.pending != nil {
		c.pending.Cancel()
	}
	gen := c.generation
	c.pending = c.scheduler.AfterFunc(delay, func() {
		c.run(gen)
	})
	c.transitionLocked(eventSchedule)
}

// cancelPendingLocked 取消待执行的校验
func (c *Controller) cancelPendingLocked() {
	if c.pending == nil {
		return
	}
	c.pending.Cancel()
	c.pending = nil
	c.transitionLocked(eventCancel)
}

// run 执行一次校验，期间有新变更则丢弃结果
func (c *Controller) run(gen uint64) *validator.Result {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.log.Debug().Uint64("generation", gen).Msg("校验已过期，跳过")
		return nil
	}
	c.pending = nil
	c.inFlight++
	c.transitionLocked(eventStart)
	c.mu.Unlock()

	result := c.v.ValidateSchedule(c.options)

	c.mu.Lock()
	c.inFlight--
	var subscribers []func(*validator.Result)
	if gen == c.generation && !c.closed {
		c.latest = result
		subscribers = c.subscribersLocked()
	} else {
		c.log.Debug().Uint64("generation", gen).Msg("校验结果已过期，丢弃")
	}
	if c.inFlight == 0 {
		c.transitionLocked(eventFinish)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(result)
	}
	return result
}

// subscribersLocked 按订阅顺序返回订阅者
func (c *Controller) subscribersLocked() []func(*validator.Result) {
	result := make([]func(*validator.Result), 0, len(c.subscribers))
	for id := 0; id < c.nextSubID; id++ {
		if fn, ok := c.subscribers[id]; ok {
			result = append(result, fn)
		}
	}
	return result
}

// transitionLocked 触发状态事件，当前状态不允许时忽略
func (c *Controller) transitionLocked(event string) {
	if c.lifecycle.Can(event) {
		_ = c.lifecycle.Event(context.Background(), event)
	}
}
