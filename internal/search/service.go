package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AshirShaikh99/creative-ai-backend/internal/metrics"
)

// SearchRequest 一次语义检索请求
type SearchRequest struct {
	Query          string
	Collection     string
	Limit          int                  // <=0 时取服务默认值
	ScoreThreshold float64              // <=0 时取服务默认值
	Filters        map[string]Condition // 可选，AND 语义
	DisableCache   bool                 // 默认启用结果缓存
}

// ServiceOptions 检索服务配置
type ServiceOptions struct {
	DefaultLimit          int
	DefaultScoreThreshold float64
	Params                SearchParams
	MaxConcurrentEmbeds   int // 向量化调用并发上限，<=0 表示不限制
	Logger                *zap.Logger
}

// Service 检索服务：协调结果缓存、向量缓存、向量化提供者与向量索引
// 每个请求独立执行，进程内共享的只有缓存与索引句柄
type Service struct {
	index       VectorIndex
	embedder    EmbeddingProvider
	resultCache *ResultCache

	defaultLimit     int
	defaultThreshold float64
	params           SearchParams
	embedSem         chan struct{}
	logger           *zap.Logger
}

// NewService 创建检索服务
// embedder 通常为 CachedProvider（带向量缓存）；resultCache 可为 nil 表示禁用
func NewService(index VectorIndex, embedder EmbeddingProvider, resultCache *ResultCache, opts ServiceOptions) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.DefaultScoreThreshold <= 0 {
		opts.DefaultScoreThreshold = 0.5
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var sem chan struct{}
	if opts.MaxConcurrentEmbeds > 0 {
		sem = make(chan struct{}, opts.MaxConcurrentEmbeds)
	}

	return &Service{
		index:            index,
		embedder:         embedder,
		resultCache:      resultCache,
		defaultLimit:     opts.DefaultLimit,
		defaultThreshold: opts.DefaultScoreThreshold,
		params:           opts.Params,
		embedSem:         sem,
		logger:           opts.Logger,
	}
}

// Search 语义检索
// 流程: 结果缓存 -> 集合校验 -> 查询向量化 -> 索引检索 -> 结果映射 -> 缓存回填
// 集合不存在按空结果降级；缓存故障降级为直接计算；其余错误包装为 SearchError
func (s *Service) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	start := time.Now()

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	threshold := req.ScoreThreshold
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	useCache := !req.DisableCache && s.resultCache != nil
	var cacheKey string
	if useCache {
		cacheKey = ResultCacheKey(req.Query, req.Collection, limit, threshold, req.Filters)
		if results, ok := s.resultCache.Get(ctx, cacheKey); ok {
			metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "cache_hit").Inc()
			return results, nil
		}
	}

	// 集合缺失不作为错误上抛：记录诊断日志并返回空结果，保持调用方可用
	exists, err := s.index.CollectionExists(ctx, req.Collection)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "error").Inc()
		return nil, &SearchError{Collection: req.Collection, Err: err}
	}
	if !exists {
		s.logger.Warn("检索目标集合不存在，返回空结果",
			zap.String("collection", req.Collection),
			zap.String("query", req.Query),
		)
		metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "collection_missing").Inc()
		return []SearchResult{}, nil
	}

	vector, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "error").Inc()
		var embErr *EmbeddingError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, &SearchError{Collection: req.Collection, Err: err}
	}

	params := s.params
	hits, err := s.index.Search(ctx, req.Collection, vector, SearchOptions{
		Limit:          limit,
		ScoreThreshold: threshold,
		Filter:         req.Filters,
		Params:         &params,
	})
	if err != nil {
		var notFound *CollectionNotFoundError
		if errors.As(err, &notFound) {
			// 存在性检查与检索之间集合被删除的竞态，同样按空结果降级
			s.logger.Warn("检索时集合已不存在，返回空结果",
				zap.String("collection", req.Collection),
			)
			metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "collection_missing").Inc()
			return []SearchResult{}, nil
		}
		metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "error").Inc()
		return nil, &SearchError{Collection: req.Collection, Err: err}
	}

	results := processHits(hits)

	if useCache {
		s.resultCache.Set(ctx, cacheKey, results)
	}

	metrics.SearchRequestsTotal.WithLabelValues(req.Collection, "ok").Inc()
	metrics.SearchDuration.WithLabelValues(req.Collection).Observe(time.Since(start).Seconds())
	return results, nil
}

// embedQuery 获取查询向量，受并发信号量约束避免向量化调用挤兑
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedSem != nil {
		select {
		case s.embedSem <- struct{}{}:
			defer func() { <-s.embedSem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.embedder.Embed(ctx, query)
}

// processHits 将索引原始命中映射为检索结果，缺失字段取默认值
// 索引已按相似度降序返回，无需重排
func processHits(hits []*ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		content, _ := hit.Payload["content"].(string)
		source, _ := hit.Payload["source"].(string)
		if source == "" {
			source = "unknown"
		}
		metadata, _ := hit.Payload["metadata"].(map[string]any)
		if metadata == nil {
			metadata = map[string]any{}
		}
		results = append(results, SearchResult{
			Content:  content,
			Metadata: metadata,
			Score:    hit.Score,
			Source:   source,
		})
	}
	return results
}
