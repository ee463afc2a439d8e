package metrics

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
	"github.com/paiban/rostercheck/pkg/validator"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()

	c := r.NewCounter("test_total", "测试", []string{"a", "b"})
	c.Inc("x", "y")
	c.Add(2, "x", "y")
	assert.Equal(t, 3.0, c.Value("x", "y"))
	assert.Equal(t, 0.0, c.Value("x", "z"))

	g := r.NewGauge("test_gauge", "测试", nil)
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	assert.Equal(t, 4.0, g.Value())
}

func TestHistogramCumulativeOutput(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("test_seconds", "测试", nil, []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	assert.Equal(t, 3, h.Count())

	var sb strings.Builder
	r.Expose(&sb)
	out := sb.String()

	assert.Contains(t, out, `test_seconds_bucket{le="0.1"} 1`)
	assert.Contains(t, out, `test_seconds_bucket{le="1"} 2`)
	assert.Contains(t, out, `test_seconds_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "test_seconds_count 3")
}

func TestValidationObserver(t *testing.T) {
	r := NewRegistry()
	o := NewValidationObserver(r)

	o.ObserveValidation(&validator.Result{
		IsValid:  false,
		Duration: 3 * time.Millisecond,
		HardViolations: []constraint.Result{
			{RuleID: "REST_PERIOD_11H", Hardness: model.HardnessHard},
			{RuleID: "REST_PERIOD_11H", Hardness: model.HardnessHard},
		},
		SoftViolations: []constraint.Result{
			{RuleID: "MAX_WEEKENDS_PER_MONTH", Hardness: model.HardnessSoft},
		},
		Statistics: validator.Statistics{FailedEvaluators: []string{"broken"}},
	})
	o.ObserveValidation(&validator.Result{IsValid: true})
	o.ObserveValidation(nil)

	runs := r.GetCounter(ValidationRunsTotal)
	assert.Equal(t, 1.0, runs.Value("invalid"))
	assert.Equal(t, 1.0, runs.Value("valid"))

	violations := r.GetCounter(ViolationsTotal)
	assert.Equal(t, 2.0, violations.Value("REST_PERIOD_11H", "hard"))
	assert.Equal(t, 1.0, violations.Value("MAX_WEEKENDS_PER_MONTH", "soft"))

	assert.Equal(t, 1.0, r.GetCounter(EvaluatorFailuresTotal).Value("broken"))
	assert.Equal(t, 2, r.GetHistogram(ValidationDurationSeconds).Count())
}

func TestWatchCacheAndHandler(t *testing.T) {
	r := NewRegistry()
	c := cache.New(time.Minute)
	r.WatchCache(c)
	r.WatchCache(nil)

	c.Set("rest", "h1", nil)
	_, ok := c.Get("rest", "h1")
	require.True(t, ok)
	_, ok = c.Get("rest", "h2")
	require.False(t, ok)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE rostercheck_cache_hits gauge")
	assert.Contains(t, body, "rostercheck_cache_hits 1\n")
	assert.Contains(t, body, "rostercheck_cache_misses 1\n")
	assert.Contains(t, body, "rostercheck_cache_entries 1\n")
}

func TestWatchDB(t *testing.T) {
	r := NewRegistry()
	r.WatchDB(nil)

	stats := sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3, WaitCount: 7}
	r.WatchDB(func() sql.DBStats { return stats })

	scrape := func() string {
		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}

	body := scrape()
	assert.Contains(t, body, "# TYPE rostercheck_db_connections gauge")
	assert.Contains(t, body, `rostercheck_db_connections{state="open"} 5`+"\n")
	assert.Contains(t, body, `rostercheck_db_connections{state="in_use"} 2`+"\n")
	assert.Contains(t, body, `rostercheck_db_connections{state="idle"} 3`+"\n")
	assert.Contains(t, body, "rostercheck_db_wait_count 7\n")

	// 每次抓取重新读取
	stats.InUse = 4
	assert.Contains(t, scrape(), `rostercheck_db_connections{state="in_use"} 4`+"\n")
}

func TestFormatLabels(t *testing.T) {
	assert.Equal(t, `method="GET",path="/x"`, formatLabels([]string{"method", "path"}, "GET,/x"))
	assert.Equal(t, `a="1",b=""`, formatLabels([]string{"a", "b"}, "1"))
}
