// Package metrics 定义 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semantic_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 检索指标
var (
	// SearchRequestsTotal 检索请求总数
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_search_requests_total",
			Help: "语义检索请求总数",
		},
		[]string{"collection", "status"},
	)

	// SearchDuration 检索耗时（秒）
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semantic_search_duration_seconds",
			Help:    "语义检索耗时分布",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection"},
	)

	// EmbeddingDuration 向量化耗时（秒）
	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semantic_embedding_duration_seconds",
			Help:    "向量化调用耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// EmbeddingErrorsTotal 向量化失败总数
	EmbeddingErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semantic_embedding_errors_total",
			Help: "向量化调用失败总数",
		},
	)
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中总数（按层：embedding / result）
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_hits_total",
			Help: "缓存命中总数",
		},
		[]string{"tier"},
	)

	// CacheMissesTotal 缓存未命中总数
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_misses_total",
			Help: "缓存未命中总数",
		},
		[]string{"tier"},
	)

	// CacheBackendErrorsTotal 缓存后端故障总数（降级为未命中）
	CacheBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_cache_backend_errors_total",
			Help: "缓存后端故障总数",
		},
		[]string{"tier", "operation"},
	)
)

// 索引指标
var (
	// IndexUpsertsTotal 向量写入总数（点数）
	IndexUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semantic_index_upserts_total",
			Help: "向量写入点数总数",
		},
		[]string{"collection"},
	)

	// IndexRequestDuration 向量索引请求耗时（秒）
	IndexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semantic_index_request_duration_seconds",
			Help:    "向量索引请求耗时分布",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)
