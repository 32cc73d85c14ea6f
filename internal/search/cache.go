package search

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AshirShaikh99/creative-ai-backend/internal/metrics"
)

// Cache 缓存后端抽象
// 缓存只是性能优化：任何后端故障都按未命中处理，绝不影响检索正确性
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// ============================================================================
// 进程内 LRU 缓存
// ============================================================================

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // 零值表示不过期
}

// MemoryCache 容量受限的进程内缓存，超出容量时淘汰最久未使用的条目
type MemoryCache struct {
	capacity int
	mu       sync.Mutex
	order    *list.List // 队首为最近使用
	entries  map[string]*list.Element
}

// NewMemoryCache 创建进程内 LRU 缓存
// capacity: 最大条目数，<=0 时取默认 10000
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get 查询缓存并刷新访问顺序
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set 写入缓存，必要时淘汰最久未使用条目
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	elem := c.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = elem
}

// Len 当前条目数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// evictOldest 淘汰队尾（最久未使用）条目，调用方持锁
func (c *MemoryCache) evictOldest() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	entry := tail.Value.(*memoryEntry)
	c.order.Remove(tail)
	delete(c.entries, entry.key)
}

// ============================================================================
// Redis 共享缓存
// ============================================================================

// RedisCache 外部共享缓存层，带显式 TTL
// 读写故障只记录日志并打点，按未命中降级
type RedisCache struct {
	client redis.UniversalClient
	tier   string // 指标标签: embedding / result
	logger *zap.Logger
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client redis.UniversalClient, tier string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, tier: tier, logger: logger}
}

// Get 查询缓存
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			metrics.CacheBackendErrorsTotal.WithLabelValues(c.tier, "get").Inc()
			c.logger.Warn("Redis 缓存读取失败，按未命中处理",
				zap.String("tier", c.tier),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return data, true
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		metrics.CacheBackendErrorsTotal.WithLabelValues(c.tier, "set").Inc()
		c.logger.Warn("Redis 缓存写入失败",
			zap.String("tier", c.tier),
			zap.Error(err),
		)
	}
}
