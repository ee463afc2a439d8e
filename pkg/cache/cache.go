// Package cache 提供规则评估结果的时效缓存
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
)

// DefaultTTL 默认缓存有效期
const DefaultTTL = 60 * time.Second

// Mutation 数据变更类型
type Mutation string

const (
	MutationAssignments Mutation = "assignments" // 分配变更
	MutationShift       Mutation = "shift"       // 班次定义变更
	MutationRule        Mutation = "rule"        // 规则变更
	MutationOther       Mutation = "other"       // 未分类变更
)

// invalidationTargets 变更类型 -> 受影响规则，未列出的类型清空全部
var invalidationTargets = map[Mutation][]string{
	MutationAssignments: builtin.AssignmentSensitiveRules,
	MutationShift:       builtin.ShiftSensitiveRules,
}

// TimeSource 时间源
type TimeSource interface {
	Now() time.Time
}

// RealTimeSource 系统时间
type RealTimeSource struct{}

// Now 返回当前时间
func (RealTimeSource) Now() time.Time { return time.Now() }

type key struct {
	evaluator string
	hash      string
}

type entry struct {
	results   []constraint.Result
	expiresAt time.Time
}

// Stats 缓存统计
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Cache 规则结果缓存，键为 (规则名, 内容哈希)
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   TimeSource
	entries map[key]entry
	hits    int64
	misses  int64
	epoch   uint64 // 每次失效递增

	group singleflight.Group
}

// Option 缓存选项
type Option func(*Cache)

// WithTimeSource 指定时间源
func WithTimeSource(ts TimeSource) Option {
	return func(c *Cache) {
		c.clock = ts
	}
}

// New 创建缓存，ttl <= 0 时使用默认值
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		clock:   RealTimeSource{},
		entries: make(map[key]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL 返回缓存有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get 读取缓存，过期条目在读取时删除
func (c *Cache) Get(evaluator, hash string) ([]constraint.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{evaluator: evaluator, hash: hash}
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, k)
		c.misses++
		return nil, false
	}
	c.hits++
	return copyResults(e.results), true
}

// Set 写入缓存
func (c *Cache) Set(evaluator, hash string, results []constraint.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(evaluator, hash, results)
}

// setAt 仅当失效代未变化时写入缓存
func (c *Cache) setAt(evaluator, hash string, results []constraint.Result, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.setLocked(evaluator, hash, results)
}

func (c *Cache) setLocked(evaluator, hash string, results []constraint.Result) {
	c.entries[key{evaluator: evaluator, hash: hash}] = entry{
		results:   copyResults(results),
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Epoch 当前失效代，Invalidate 和 Clear 时递增
func (c *Cache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Invalidate 清除指定规则的全部缓存
func (c *Cache) Invalidate(evaluators ...string) {
	names := make(map[string]bool, len(evaluators))
	for _, n := range evaluators {
		names[n] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for k := range c.entries {
		if names[k.evaluator] {
			delete(c.entries, k)
		}
	}
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[key]entry)
}

// InvalidateFor 按变更类型清除缓存，返回被清除的规则名（nil 表示全部）
func (c *Cache) InvalidateFor(m Mutation) []string {
	targets, ok := invalidationTargets[m]
	if !ok {
		c.Clear()
		return nil
	}
	c.Invalidate(targets...)
	return targets
}

// Stats 返回缓存统计
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// Keys 返回当前缓存的规则名（已排序，去重）
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for k := range c.entries {
		if !seen[k.evaluator] {
			seen[k.evaluator] = true
			names = append(names, k.evaluator)
		}
	}
	sort.Strings(names)
	return names
}

// getOrCompute 读取缓存，未命中时合并并发计算
// epoch 为调用方读取上下文时的失效代，之后发生过失效则不读不写缓存
func (c *Cache) getOrCompute(evaluator, hash string, epoch uint64, compute func() []constraint.Result) []constraint.Result {
	if c.Epoch() != epoch {
		return compute()
	}
	if results, ok := c.Get(evaluator, hash); ok {
		return results
	}

	flightKey := fmt.Sprintf("%s/%s/%d", evaluator, hash, epoch)
	v, err, _ := c.group.Do(flightKey, func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &computePanic{value: r}
			}
		}()
		results := compute()
		c.setAt(evaluator, hash, results, epoch)
		return results, nil
	})
	// 每个等待者在自己的 goroutine 中重新 panic，由调用方恢复
	if p, ok := err.(*computePanic); ok {
		panic(p.value)
	}
	results, _ := v.([]constraint.Result)
	return copyResults(results)
}

// computePanic 计算过程中的 panic
type computePanic struct {
	value interface{}
}

func (p *computePanic) Error() string {
	return fmt.Sprintf("缓存计算失败: %v", p.value)
}

func copyResults(results []constraint.Result) []constraint.Result {
	if results == nil {
		return nil
	}
	out := make([]constraint.Result, len(results))
	copy(out, results)
	return out
}
