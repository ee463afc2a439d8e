package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/model"
)

// fakeTimeSource 可手动推进的时间源
type fakeTimeSource struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTimeSource() *fakeTimeSource {
	return &fakeTimeSource{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeTimeSource) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTimeSource) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// countingEvaluator 记录调用次数的规则
type countingEvaluator struct {
	name  string
	calls int32
	panic bool
	hook  func()
}

func (e *countingEvaluator) Name() string             { return e.name }
func (e *countingEvaluator) Description() string      { return "counting" }
func (e *countingEvaluator) Hardness() model.Hardness { return model.HardnessHard }
func (e *countingEvaluator) Category() string         { return "test" }
func (e *countingEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	atomic.AddInt32(&e.calls, 1)
	if e.hook != nil {
		e.hook()
	}
	if e.panic {
		panic("evaluator bug")
	}
	return []constraint.Result{{RuleID: e.name, Hardness: model.HardnessHard, Message: "v"}}
}

func assignment(emp uuid.UUID, shift uuid.UUID, date string) *model.Assignment {
	return &model.Assignment{BaseModel: model.NewBaseModel(), EmployeeID: emp, ShiftID: shift, Date: date}
}

func TestCache_TTLExpiryDeletesOnRead(t *testing.T) {
	clock := newFakeTimeSource()
	c := New(0, WithTimeSource(clock))
	assert.Equal(t, DefaultTTL, c.TTL())

	c.Set("R", "h", []constraint.Result{{RuleID: "R"}})

	got, ok := c.Get("R", "h")
	require.True(t, ok)
	assert.Len(t, got, 1)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("R", "h")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("R", "h")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(time.Minute)
	results := []constraint.Result{{RuleID: "R", Message: "original"}}
	c.Set("R", "h", results)
	results[0].Message = "changed"

	got, _ := c.Get("R", "h")
	got[0].Message = "mutated"

	again, _ := c.Get("R", "h")
	assert.Equal(t, "original", again[0].Message)
}

func TestCache_InvalidateFor(t *testing.T) {
	tests := []struct {
		name      string
		mutation  Mutation
		remaining []string
	}{
		{
			name:      "分配变更",
			mutation:  MutationAssignments,
			remaining: []string{builtin.RuleAvailability, builtin.RuleMinStaffing, builtin.RuleQualification},
		},
		{
			name:     "班次变更",
			mutation: MutationShift,
			remaining: []string{
				builtin.RuleAvailability, builtin.RuleMaxWeekends, builtin.RuleMaxWeeklyHours,
				builtin.RuleNoDoubleBooking, builtin.RuleRestPeriod,
			},
		},
		{name: "规则变更清空全部", mutation: MutationRule},
		{name: "未分类变更清空全部", mutation: MutationOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Minute)
			for _, name := range builtin.DefaultRegistry().Names() {
				c.Set(name, "h", nil)
			}

			c.InvalidateFor(tt.mutation)

			assert.Equal(t, tt.remaining, c.Keys())
		})
	}
}

func TestWithCaching_SkipsRecomputation(t *testing.T) {
	c := New(time.Minute)
	inner := &countingEvaluator{name: "COUNT"}
	emp, shift := uuid.New(), uuid.New()

	ctx := constraint.NewContext("2024-03-01", "2024-03-31")
	ctx.SetAssignments([]*model.Assignment{assignment(emp, shift, "2024-03-04")})

	keyFn := func(ctx *constraint.Context) string {
		return HashSchedule(ctx.Assignments, ctx.StartDate, ctx.EndDate)
	}
	wrapped := WithCaching(inner, c, keyFn)
	assert.Equal(t, "COUNT", wrapped.Name())

	first := wrapped.Evaluate(ctx)
	second := wrapped.Evaluate(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	// 分配变化导致哈希变化
	ctx.SetAssignments(append(ctx.Assignments, assignment(emp, shift, "2024-03-05")))
	wrapped.Evaluate(ctx)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))

	// 手动失效后重新计算
	c.Invalidate("COUNT")
	wrapped.Evaluate(ctx)
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestWithCaching_NilCacheReturnsInner(t *testing.T) {
	inner := &countingEvaluator{name: "COUNT"}
	assert.Same(t, inner, WithCaching(inner, nil, nil))
}

func TestWithCaching_PanicPropagatesToCaller(t *testing.T) {
	c := New(time.Minute)
	wrapped := WithCaching(&countingEvaluator{name: "BROKEN", panic: true}, c, func(*constraint.Context) string { return "h" })

	assert.Panics(t, func() {
		wrapped.Evaluate(constraint.NewContext("2024-03-01", "2024-03-31"))
	})
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestWithCaching_ConcurrentCallers(t *testing.T) {
	c := New(time.Minute)
	inner := &countingEvaluator{name: "COUNT"}
	wrapped := WithCaching(inner, c, func(*constraint.Context) string { return "same" })
	ctx := constraint.NewContext("2024-03-01", "2024-03-31")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := wrapped.Evaluate(ctx)
			assert.Len(t, results, 1)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&inner.calls), int32(1))
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestWithCachingAt_InvalidationDuringCompute(t *testing.T) {
	c := New(time.Minute)
	keyFn := func(*constraint.Context) string { return "same" }
	ctx := constraint.NewContext("2024-03-01", "2024-03-31")

	inner := &countingEvaluator{name: "COUNT"}
	cleared := false
	inner.hook = func() {
		if !cleared {
			cleared = true
			c.Clear()
		}
	}

	// 计算期间缓存被清空，旧结果不能写回
	stale := WithCachingAt(inner, c, keyFn, c.Epoch())
	stale.Evaluate(ctx)
	assert.Equal(t, 0, c.Stats().Entries)

	fresh := WithCachingAt(inner, c, keyFn, c.Epoch())
	fresh.Evaluate(ctx)
	fresh.Evaluate(ctx)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
	assert.Equal(t, 1, c.Stats().Entries)

	// 过期的失效代既不读也不写
	stale.Evaluate(ctx)
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestCache_EpochAdvancesOnInvalidation(t *testing.T) {
	c := New(time.Minute)
	start := c.Epoch()

	c.Set("R", "h", nil)
	assert.Equal(t, start, c.Epoch())

	c.Invalidate("R")
	assert.Equal(t, start+1, c.Epoch())

	c.Clear()
	assert.Equal(t, start+2, c.Epoch())

	c.InvalidateFor(MutationAssignments)
	assert.Equal(t, start+3, c.Epoch())
}

func TestHashes(t *testing.T) {
	empA, empB := uuid.New(), uuid.New()
	shift := uuid.New()
	a1 := assignment(empA, shift, "2024-03-04")
	a2 := assignment(empB, shift, "2024-03-04")
	a3 := assignment(empA, shift, "2024-03-05")

	t.Run("与输入顺序无关", func(t *testing.T) {
		h1 := HashSchedule([]*model.Assignment{a1, a2, a3}, "2024-03-01", "2024-03-31")
		h2 := HashSchedule([]*model.Assignment{a3, a1, a2}, "2024-03-01", "2024-03-31")
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})

	t.Run("与分配ID无关", func(t *testing.T) {
		clone := assignment(empA, shift, "2024-03-04")
		assert.Equal(t,
			HashDay([]*model.Assignment{a1}, "2024-03-04"),
			HashDay([]*model.Assignment{clone}, "2024-03-04"),
		)
	})

	t.Run("范围外的分配不影响哈希", func(t *testing.T) {
		outside := assignment(empA, shift, "2024-04-01")
		assert.Equal(t,
			HashSchedule([]*model.Assignment{a1}, "2024-03-01", "2024-03-31"),
			HashSchedule([]*model.Assignment{a1, outside}, "2024-03-01", "2024-03-31"),
		)
	})

	t.Run("不同范围哈希不同", func(t *testing.T) {
		assert.NotEqual(t,
			HashSchedule([]*model.Assignment{a1}, "2024-03-01", "2024-03-31"),
			HashSchedule([]*model.Assignment{a1}, "2024-03-01", "2024-03-30"),
		)
	})

	t.Run("按员工过滤", func(t *testing.T) {
		all := []*model.Assignment{a1, a2, a3}
		assert.Equal(t,
			HashEmployeeAssignments(empA, all),
			HashEmployeeAssignments(empA, []*model.Assignment{a3, a1}),
		)
		assert.NotEqual(t, HashEmployeeAssignments(empA, all), HashEmployeeAssignments(empB, all))
	})

	t.Run("班次变化哈希不同", func(t *testing.T) {
		other := assignment(empA, uuid.New(), "2024-03-04")
		assert.NotEqual(t,
			HashDay([]*model.Assignment{a1}, "2024-03-04"),
			HashDay([]*model.Assignment{other}, "2024-03-04"),
		)
	})
}

func TestHashShifts(t *testing.T) {
	newShift := func(name, spec string) *model.Shift {
		return &model.Shift{BaseModel: model.NewBaseModel(), Name: name, Time: spec}
	}
	early, late := newShift("Früh", "07:00-15:00"), newShift("Spät", "14:00-22:00")

	assert.Equal(t,
		HashShifts([]*model.Shift{early, late}),
		HashShifts([]*model.Shift{late, early}),
	)

	moved := *early
	moved.Time = "06:00-14:00"
	assert.NotEqual(t,
		HashShifts([]*model.Shift{early, late}),
		HashShifts([]*model.Shift{&moved, late}),
	)

	renamed := *early
	renamed.Name = "Frühdienst"
	assert.NotEqual(t, HashShifts([]*model.Shift{early}), HashShifts([]*model.Shift{&renamed}))
}
