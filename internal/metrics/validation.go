package metrics

import (
	"database/sql"

	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/validator"
)

// ValidationObserver 把校验结果记入注册表
type ValidationObserver struct {
	registry *MetricsRegistry
}

var _ validator.Observer = (*ValidationObserver)(nil)

// NewValidationObserver 创建观察者，registry 为空时使用全局注册表
func NewValidationObserver(r *MetricsRegistry) *ValidationObserver {
	if r == nil {
		r = GetRegistry()
	}
	return &ValidationObserver{registry: r}
}

// ObserveValidation 记录一次校验
func (o *ValidationObserver) ObserveValidation(r *validator.Result) {
	if r == nil {
		return
	}

	outcome := "valid"
	if !r.IsValid {
		outcome = "invalid"
	}
	if counter := o.registry.GetCounter(ValidationRunsTotal); counter != nil {
		counter.Inc(outcome)
	}
	if histogram := o.registry.GetHistogram(ValidationDurationSeconds); histogram != nil {
		histogram.Observe(r.Duration.Seconds())
	}

	if counter := o.registry.GetCounter(ViolationsTotal); counter != nil {
		for _, v := range r.All() {
			counter.Inc(v.RuleID, string(v.Hardness))
		}
	}
	if counter := o.registry.GetCounter(EvaluatorFailuresTotal); counter != nil {
		for _, name := range r.Statistics.FailedEvaluators {
			counter.Inc(name)
		}
	}
}

// WatchCache 抓取时同步缓存统计
func (r *MetricsRegistry) WatchCache(c *cache.Cache) {
	if c == nil {
		return
	}
	r.AddCollector(func() {
		stats := c.Stats()
		if g := r.GetGauge(CacheHits); g != nil {
			g.Set(float64(stats.Hits))
		}
		if g := r.GetGauge(CacheMisses); g != nil {
			g.Set(float64(stats.Misses))
		}
		if g := r.GetGauge(CacheEntries); g != nil {
			g.Set(float64(stats.Entries))
		}
	})
}

// WatchDB 抓取时同步连接池统计
func (r *MetricsRegistry) WatchDB(stats func() sql.DBStats) {
	if stats == nil {
		return
	}
	r.AddCollector(func() {
		s := stats()
		if g := r.GetGauge(DBConnections); g != nil {
			g.Set(float64(s.OpenConnections), "open")
			g.Set(float64(s.InUse), "in_use")
			g.Set(float64(s.Idle), "idle")
		}
		if g := r.GetGauge(DBWaitCount); g != nil {
			g.Set(float64(s.WaitCount))
		}
	})
}
