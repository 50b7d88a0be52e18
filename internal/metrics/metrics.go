// Package metrics 汇总服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标，nil 接收者上的方法均为空操作
type Metrics struct {
	registry *prometheus.Registry

	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	gbifCacheHits    prometheus.Counter
	gbifCacheMisses  prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New 创建并注册指标
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pestid_provider_calls_total",
				Help: "Vision provider calls by provider, stage and outcome",
			},
			[]string{"provider", "stage", "outcome"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pestid_provider_call_duration_seconds",
				Help:    "Vision provider call latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"provider", "stage"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pestid_verification_transitions_total",
				Help: "Verification status transitions",
			},
			[]string{"from", "to"},
		),
		gbifCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestid_gbif_cache_hits_total",
			Help: "GBIF lookups served from cache",
		}),
		gbifCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pestid_gbif_cache_misses_total",
			Help: "GBIF lookups that went upstream",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pestid_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.providerCalls,
		m.providerDuration,
		m.transitions,
		m.gbifCacheHits,
		m.gbifCacheMisses,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry 指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordProviderCall 记录一次模型调用
func (m *Metrics) RecordProviderCall(provider, stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, stage, outcome).Inc()
	m.providerDuration.WithLabelValues(provider, stage).Observe(d.Seconds())
}

// RecordTransition 记录审核状态变更
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// CacheHit GBIF 缓存命中
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.gbifCacheHits.Inc()
}

// CacheMiss GBIF 缓存未命中
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.gbifCacheMisses.Inc()
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
