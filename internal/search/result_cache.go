package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/AshirShaikh99/creative-ai-backend/internal/metrics"
)

// DefaultResultTTL 结果缓存默认过期时间
const DefaultResultTTL = time.Hour

// ResultCache 检索结果缓存：按规范化请求键记忆整份响应
// 文档重新索引后旧条目不会被主动失效，只靠 TTL/LRU 过期，
// 这是刻意的延迟/新鲜度权衡
type ResultCache struct {
	backend Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewResultCache 创建结果缓存
func NewResultCache(backend Cache, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{backend: backend, ttl: ttl, logger: logger}
}

// Get 按键查询缓存的结果列表
func (c *ResultCache) Get(ctx context.Context, key string) ([]SearchResult, bool) {
	data, ok := c.backend.Get(ctx, key)
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("result").Inc()
		return nil, false
	}

	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		metrics.CacheMissesTotal.WithLabelValues("result").Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues("result").Inc()
	return results, true
}

// Set 写入结果列表
func (c *ResultCache) Set(ctx context.Context, key string, results []SearchResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("结果缓存序列化失败", zap.Error(err))
		return
	}
	c.backend.Set(ctx, key, data, c.ttl)
}

// ResultCacheKey 生成确定性的结果缓存键
// 请求参数按规范（键排序）JSON 序列化后取 SHA-256，
// 保证语义相同但过滤条件插入顺序不同的请求命中同一条目
func ResultCacheKey(query, collection string, limit int, scoreThreshold float64, conditions map[string]Condition) string {
	payload := map[string]any{
		"query":             query,
		"collection":        collection,
		"limit":             limit,
		"score_threshold":   scoreThreshold,
		"filter_conditions": canonicalConditions(conditions),
	}
	// map 键在 encoding/json 中固定排序，序列化结果确定
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return "search:" + hex.EncodeToString(sum[:])
}
