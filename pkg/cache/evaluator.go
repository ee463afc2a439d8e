package cache

import (
	"github.com/paiban/rostercheck/pkg/constraint"
)

// KeyFunc 由上下文计算缓存哈希
type KeyFunc func(ctx *constraint.Context) string

// cachedEvaluator 带缓存的规则
type cachedEvaluator struct {
	constraint.Evaluator
	cache  *Cache
	keyFn  KeyFunc
	epoch  uint64
	pinned bool
}

// WithCaching 包装规则，哈希不变时直接返回缓存结果
func WithCaching(e constraint.Evaluator, c *Cache, keyFn KeyFunc) constraint.Evaluator {
	if c == nil || keyFn == nil {
		return e
	}
	return &cachedEvaluator{Evaluator: e, cache: c, keyFn: keyFn}
}

// WithCachingAt 同 WithCaching，但固定在读取上下文时的失效代
// 计算期间缓存被失效时，结果不写回缓存
func WithCachingAt(e constraint.Evaluator, c *Cache, keyFn KeyFunc, epoch uint64) constraint.Evaluator {
	if c == nil || keyFn == nil {
		return e
	}
	return &cachedEvaluator{Evaluator: e, cache: c, keyFn: keyFn, epoch: epoch, pinned: true}
}

// Evaluate 评估并缓存结果
func (e *cachedEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	epoch := e.epoch
	if !e.pinned {
		epoch = e.cache.Epoch()
	}
	return e.cache.getOrCompute(e.Name(), e.keyFn(ctx), epoch, func() []constraint.Result {
		return e.Evaluator.Evaluate(ctx)
	})
}
