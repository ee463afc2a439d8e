// Package validator 提供排班校验流水线
package validator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/logger"
	"github.com/paiban/rostercheck/pkg/model"
)

// Observer 校验完成回调（用于指标采集）
type Observer interface {
	ObserveValidation(r *Result)
}

// Validator 校验流水线
// 持有的上下文只会被整体替换，不会原地修改
type Validator struct {
	registry *constraint.Registry
	cache    *cache.Cache
	log      *logger.ValidationLogger
	clock    func() time.Time
	observer Observer

	mu  sync.RWMutex
	ctx *constraint.Context
}

// Option 校验器选项
type Option func(*Validator)

// WithCache 启用结果缓存
func WithCache(c *cache.Cache) Option {
	return func(v *Validator) {
		v.cache = c
	}
}

// WithLogger 指定日志器
func WithLogger(l *logger.ValidationLogger) Option {
	return func(v *Validator) {
		v.log = l
	}
}

// WithClock 指定时间函数
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		v.clock = clock
	}
}

// WithObserver 指定校验完成回调
func WithObserver(o Observer) Option {
	return func(v *Validator) {
		v.observer = o
	}
}

// New 创建校验器，registry 为空时使用默认注册表
func New(registry *constraint.Registry, ctx *constraint.Context, opts ...Option) *Validator {
	if registry == nil {
		registry = builtin.DefaultRegistry()
	}
	if ctx == nil {
		ctx = constraint.NewContext("", "")
	}
	v := &Validator{
		registry: registry,
		ctx:      ctx,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.log == nil {
		v.log = logger.NewValidationLogger()
	}
	return v
}

// Context 返回当前上下文
func (v *Validator) Context() *constraint.Context {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ctx
}

// Registry 返回规则注册表
func (v *Validator) Registry() *constraint.Registry {
	return v.registry
}

// Cache 返回结果缓存（可能为空）
func (v *Validator) Cache() *cache.Cache {
	return v.cache
}

// ValidateSchedule 对整个排班运行所选规则
func (v *Validator) ValidateSchedule(opts Options) *Result {
	start := v.clock()
	ctx, epoch := v.state()
	evaluators := v.selectEvaluators(opts)

	v.log.StartValidation(ctx.StartDate, ctx.EndDate, len(evaluators), len(ctx.Assignments))

	result := newResult()
	var failed []string
	checked := 0

	for _, e := range evaluators {
		checked++
		violations, ok := v.evaluate(v.withCache(e, epoch), ctx)
		if !ok {
			failed = append(failed, e.Name())
			continue
		}

		for _, r := range violations {
			if opts.HardOnly && !r.IsHard() {
				continue
			}
			result.add(r)
			if r.IsHard() {
				v.log.ConstraintViolation(r.RuleID, string(r.Hardness), r.Message)
				if opts.FailFast {
					return v.complete(result, checked, failed, start)
				}
			}
		}
	}

	return v.complete(result, checked, failed, start)
}

// ValidateAssignment 校验单个新增或修改的分配
// 只运行与单个分配相关的规则，结果限定为涉及目标员工和日期的违规，不使用缓存
func (v *Validator) ValidateAssignment(a *model.Assignment) *Result {
	start := v.clock()
	ctx := v.Context().WithTarget(a)
	evaluators := v.registry.Select(builtin.SingleAssignmentRules)

	result := newResult()
	var failed []string

	for _, e := range evaluators {
		violations, ok := v.evaluate(e, ctx)
		if !ok {
			failed = append(failed, e.Name())
			continue
		}
		for _, r := range violations {
			if r.AffectsEmployee(a.EmployeeID) && r.AffectsDate(a.Date) {
				result.add(r)
			}
		}
	}

	result.finish(len(evaluators), failed, start, v.clock())
	return result
}

// GetViolationsForEmployee 获取涉及某员工的全部违规（硬约束在前）
func (v *Validator) GetViolationsForEmployee(id uuid.UUID) []constraint.Result {
	var out []constraint.Result
	for _, r := range v.ValidateSchedule(Options{}).All() {
		if r.AffectsEmployee(id) {
			out = append(out, r)
		}
	}
	return out
}

// GetViolationsForDate 获取涉及某日期的全部违规（硬约束在前）
func (v *Validator) GetViolationsForDate(date string) []constraint.Result {
	var out []constraint.Result
	for _, r := range v.ValidateSchedule(Options{}).All() {
		if r.AffectsDate(date) {
			out = append(out, r)
		}
	}
	return out
}

// UpdateContext 替换上下文中给出的部分并按变更类型失效缓存，返回变更类型
func (v *Validator) UpdateContext(update ContextUpdate) cache.Mutation {
	m := update.Mutation()
	v.ApplyChange(update, m)
	return m
}

// ApplyChange 按指定变更类型更新上下文并失效缓存，返回被失效的规则（nil 表示全部或未启用缓存）
// 替换上下文和失效缓存在同一把锁内完成
func (v *Validator) ApplyChange(update ContextUpdate, m cache.Mutation) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctx = update.Apply(v.ctx)
	if v.cache == nil {
		return nil
	}
	invalidated := v.cache.InvalidateFor(m)
	v.log.CacheInvalidated(string(m), invalidated)
	return invalidated
}

// state 同时读取上下文和缓存失效代
func (v *Validator) state() (*constraint.Context, uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.cache == nil {
		return v.ctx, 0
	}
	return v.ctx, v.cache.Epoch()
}

// selectEvaluators 按选项选择规则，保持注册顺序
func (v *Validator) selectEvaluators(opts Options) []constraint.Evaluator {
	var evaluators []constraint.Evaluator
	if len(opts.RuleNames) > 0 {
		evaluators = v.registry.Select(opts.RuleNames)
	} else {
		evaluators = v.registry.All()
	}

	if !opts.HardOnly {
		return evaluators
	}
	var hard []constraint.Evaluator
	for _, e := range evaluators {
		if e.Hardness() == model.HardnessHard || e.Hardness() == constraint.HardnessBoth {
			hard = append(hard, e)
		}
	}
	return hard
}

// withCache 在配置了缓存时包装规则
// 哈希覆盖校验窗口前后各一天的分配（跨天休息检查）和全部班次定义
func (v *Validator) withCache(e constraint.Evaluator, epoch uint64) constraint.Evaluator {
	if v.cache == nil {
		return e
	}
	return cache.WithCachingAt(e, v.cache, scheduleKey, epoch)
}

func scheduleKey(ctx *constraint.Context) string {
	return cache.HashSchedule(ctx.Assignments, model.AddDays(ctx.StartDate, -1), model.AddDays(ctx.EndDate, 1)) +
		":" + cache.HashShifts(ctx.Shifts)
}

// evaluate 运行单个规则，panic 记录日志并按零违规处理
func (v *Validator) evaluate(e constraint.Evaluator, ctx *constraint.Context) (results []constraint.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.log.EvaluatorFailed(e.Name(), errors.EvaluatorFailed(e.Name(), r))
			results, ok = nil, false
		}
	}()
	return e.Evaluate(ctx), true
}

// complete 汇总结果
func (v *Validator) complete(result *Result, checked int, failed []string, start time.Time) *Result {
	result.finish(checked, failed, start, v.clock())
	v.log.ValidationComplete(result.Duration, result.Statistics.HardCount, result.Statistics.SoftCount, result.IsValid)
	if v.observer != nil {
		v.observer.ObserveValidation(result)
	}
	return result
}
