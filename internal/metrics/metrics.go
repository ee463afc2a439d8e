// Package metrics 提供Prometheus文本格式的监控指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// 指标名称
const (
	HTTPRequestsTotal          = "rostercheck_http_requests_total"
	HTTPRequestDurationSeconds = "rostercheck_http_request_duration_seconds"
	ValidationRunsTotal        = "rostercheck_validation_runs_total"
	ValidationDurationSeconds  = "rostercheck_validation_duration_seconds"
	ViolationsTotal            = "rostercheck_violations_total"
	EvaluatorFailuresTotal     = "rostercheck_evaluator_failures_total"
	CacheHits                  = "rostercheck_cache_hits"
	CacheMisses                = "rostercheck_cache_misses"
	CacheEntries               = "rostercheck_cache_entries"
	DBConnections              = "rostercheck_db_connections"
	DBWaitCount                = "rostercheck_db_wait_count"
)

// MetricsRegistry 指标注册表
type MetricsRegistry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	collectors []func()
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *MetricsRegistry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *MetricsRegistry {
	once.Do(func() {
		registry = NewRegistry()
	})
	return registry
}

// NewRegistry 创建带默认指标的注册表
func NewRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
	r.initDefaultMetrics()
	return r
}

// initDefaultMetrics 初始化默认指标
func (r *MetricsRegistry) initDefaultMetrics() {
	r.NewCounter(HTTPRequestsTotal, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(HTTPRequestDurationSeconds, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0})

	// 校验
	r.NewCounter(ValidationRunsTotal, "校验次数", []string{"result"})
	r.NewHistogram(ValidationDurationSeconds, "校验耗时",
		[]string{},
		[]float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0})
	r.NewCounter(ViolationsTotal, "违规条数", []string{"rule_id", "type"})
	r.NewCounter(EvaluatorFailuresTotal, "规则执行失败次数", []string{"evaluator"})

	// 缓存（抓取时刷新）
	r.NewGauge(CacheHits, "缓存命中次数", []string{})
	r.NewGauge(CacheMisses, "缓存未命中次数", []string{})
	r.NewGauge(CacheEntries, "缓存条目数", []string{})

	// 连接池（抓取时刷新）
	r.NewGauge(DBConnections, "数据库连接数", []string{"state"})
	r.NewGauge(DBWaitCount, "等待连接的累计次数", []string{})
}

// NewCounter 创建计数器
func (r *MetricsRegistry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *MetricsRegistry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *MetricsRegistry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *MetricsRegistry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *MetricsRegistry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *MetricsRegistry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// AddCollector 注册抓取前执行的刷新函数
func (r *MetricsRegistry) AddCollector(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, fn)
}

// Counter methods

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 返回当前值
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Gauge methods

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Inc 增加
func (g *Gauge) Inc(labelValues ...string) {
	g.Add(1, labelValues...)
}

// Dec 减少
func (g *Gauge) Dec(labelValues ...string) {
	g.Add(-1, labelValues...)
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Value 返回当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Histogram methods

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// 只计入第一个满足的bucket，输出时累加
	placed := false
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[key][len(h.Buckets)]++ // +Inf bucket
	}

	h.sums[key] += value
}

// Count 返回观测次数
func (h *Histogram) Count(labelValues ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, n := range h.counts[labelKey(labelValues)] {
		total += n
	}
	return total
}

// labelKey 生成标签键
func labelKey(labels []string) string {
	return strings.Join(labels, ",")
}

// Handler 返回全局注册表的HTTP处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// Handler 返回Prometheus格式的指标HTTP处理器
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Expose(w)
	})
}

// Expose 按名称顺序输出全部指标
func (r *MetricsRegistry) Expose(w io.Writer) {
	r.mu.RLock()
	collectors := append([]func(){}, r.collectors...)
	r.mu.RUnlock()
	for _, collect := range collectors {
		collect()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// 输出计数器
	for _, name := range sortedNames(r.counters) {
		counter := r.counters[name]
		fmt.Fprintf(w, "# HELP %s %s\n", counter.Name, counter.Help)
		fmt.Fprintf(w, "# TYPE %s counter\n", counter.Name)

		counter.mu.RLock()
		writeSamples(w, counter.Name, counter.Labels, counter.values)
		counter.mu.RUnlock()
	}

	// 输出仪表盘
	for _, name := range sortedNames(r.gauges) {
		gauge := r.gauges[name]
		fmt.Fprintf(w, "# HELP %s %s\n", gauge.Name, gauge.Help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", gauge.Name)

		gauge.mu.RLock()
		writeSamples(w, gauge.Name, gauge.Labels, gauge.values)
		gauge.mu.RUnlock()
	}

	// 输出直方图
	for _, name := range sortedNames(r.histograms) {
		histogram := r.histograms[name]
		fmt.Fprintf(w, "# HELP %s %s\n", histogram.Name, histogram.Help)
		fmt.Fprintf(w, "# TYPE %s histogram\n", histogram.Name)

		histogram.mu.RLock()
		for _, key := range sortedNames(histogram.counts) {
			counts := histogram.counts[key]
			prefix := ""
			if key != "" {
				prefix = formatLabels(histogram.Labels, key) + ","
			}
			cumulative := 0
			for i, bucket := range histogram.Buckets {
				cumulative += counts[i]
				fmt.Fprintf(w, "%s_bucket{%sle=\"%g\"} %d\n", histogram.Name, prefix, bucket, cumulative)
			}
			cumulative += counts[len(histogram.Buckets)]
			fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", histogram.Name, prefix, cumulative)
			if key == "" {
				fmt.Fprintf(w, "%s_sum %g\n", histogram.Name, histogram.sums[key])
				fmt.Fprintf(w, "%s_count %d\n", histogram.Name, cumulative)
			} else {
				labels := formatLabels(histogram.Labels, key)
				fmt.Fprintf(w, "%s_sum{%s} %g\n", histogram.Name, labels, histogram.sums[key])
				fmt.Fprintf(w, "%s_count{%s} %d\n", histogram.Name, labels, cumulative)
			}
		}
		histogram.mu.RUnlock()
	}
}

func writeSamples(w io.Writer, name string, labels []string, values map[string]float64) {
	for _, key := range sortedNames(values) {
		if key == "" {
			fmt.Fprintf(w, "%s %g\n", name, values[key])
		} else {
			fmt.Fprintf(w, "%s{%s} %g\n", name, formatLabels(labels, key), values[key])
		}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formatLabels 格式化标签
func formatLabels(names []string, values string) string {
	vals := strings.Split(values, ",")
	parts := make([]string, 0, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, val))
	}
	return strings.Join(parts, ",")
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	registry := GetRegistry()

	if counter := registry.GetCounter(HTTPRequestsTotal); counter != nil {
		counter.Inc(method, path, fmt.Sprintf("%d", status))
	}
	if histogram := registry.GetHistogram(HTTPRequestDurationSeconds); histogram != nil {
		histogram.Observe(duration.Seconds(), method, path)
	}
}
