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

// DefaultEmbeddingTTL 向量缓存默认过期时间
const DefaultEmbeddingTTL = 24 * time.Hour

// CachedEmbedding 缓存的向量
type CachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmbeddingCache 向量缓存：按文本内容哈希记忆向量化结果
// 读穿透语义：未命中触发计算并回填，调用方不会把未命中观察为错误
type EmbeddingCache struct {
	backend Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewEmbeddingCache 创建向量缓存
func NewEmbeddingCache(backend Cache, ttl time.Duration, logger *zap.Logger) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingCache{backend: backend, ttl: ttl, logger: logger}
}

// Get 获取缓存的向量
func (c *EmbeddingCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	data, ok := c.backend.Get(ctx, embeddingCacheKey(text, model))
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("embedding").Inc()
		return nil, false
	}

	var cached CachedEmbedding
	if err := json.Unmarshal(data, &cached); err != nil {
		// 损坏条目按未命中处理，等待回填覆盖
		metrics.CacheMissesTotal.WithLabelValues("embedding").Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues("embedding").Inc()
	return cached.Vector, true
}

// Set 设置缓存
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) {
	cached := CachedEmbedding{
		Vector:    vector,
		Model:     model,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		c.logger.Warn("向量缓存序列化失败", zap.Error(err))
		return
	}
	c.backend.Set(ctx, embeddingCacheKey(text, model), data, c.ttl)
}

// GetOrCompute 读穿透：命中直接返回，否则调用 compute 并回填
// 同一键的并发重复计算可以接受，函数为纯函数，后写胜出不影响一致性
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text, model string, compute func() ([]float32, error)) ([]float32, error) {
	if vec, ok := c.Get(ctx, text, model); ok {
		return vec, nil
	}
	vec, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(ctx, text, model, vec)
	return vec, nil
}

// embeddingCacheKey 生成缓存键: emb:<model>:<sha256(text)>
func embeddingCacheKey(text, model string) string {
	hash := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(hash[:])
}

// CachedProvider 带缓存的 Embedding 提供者包装器
type CachedProvider struct {
	provider EmbeddingProvider
	cache    *EmbeddingCache
}

// NewCachedProvider 创建带缓存的 Embedding 提供者
func NewCachedProvider(provider EmbeddingProvider, cache *EmbeddingCache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache}
}

// Embed 单条向量化（带缓存）
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.cache.GetOrCompute(ctx, text, p.provider.GetModel(), func() ([]float32, error) {
		return p.provider.Embed(ctx, text)
	})
}

// EmbedBatch 批量向量化（带缓存），仅对缺失文本调用底层提供者
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := p.provider.GetModel()

	result := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := p.cache.Get(ctx, text, model); ok {
			result[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	vectors, err := p.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vec := range vectors {
		p.cache.Set(ctx, missing[j], model, vec)
		result[missingIdx[j]] = vec
	}

	return result, nil
}

// GetModel 获取模型名称
func (p *CachedProvider) GetModel() string { return p.provider.GetModel() }

// GetDimension 获取向量维度
func (p *CachedProvider) GetDimension() int { return p.provider.GetDimension() }

// GetProviderName 获取提供者名称
func (p *CachedProvider) GetProviderName() string { return p.provider.GetProviderName() }
