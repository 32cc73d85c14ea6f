package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingProvider 记录底层向量化调用次数的测试提供者
type countingProvider struct {
	embedCalls int
	batchCalls int
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embedCalls++
	return []float32{float32(len(text))}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.batchCalls++
	res := make([][]float32, len(texts))
	for i, txt := range texts {
		res[i] = []float32{float32(len(txt))}
	}
	return res, nil
}

func (p *countingProvider) GetModel() string        { return "test-model" }
func (p *countingProvider) GetDimension() int       { return 1 }
func (p *countingProvider) GetProviderName() string { return "test" }

func TestEmbeddingCache_GetOrCompute(t *testing.T) {
	ctx := context.Background()
	cache := NewEmbeddingCache(NewMemoryCache(10), time.Minute, nil)

	calls := 0
	compute := func() ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	}

	vec, err := cache.GetOrCompute(ctx, "hello", "test-model", compute)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)

	// 第二次应命中缓存，不再触发计算
	vec, err = cache.GetOrCompute(ctx, "hello", "test-model", compute)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)
	if calls != 1 {
		t.Fatalf("相同文本应只计算一次, 实际 %d 次", calls)
	}

	// 不同模型是独立的缓存键
	_, err = cache.GetOrCompute(ctx, "hello", "other-model", compute)
	require.NoError(t, err)
	if calls != 2 {
		t.Fatalf("不同模型应各自计算, 实际 %d 次", calls)
	}
}

func TestCachedProvider_Embed(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{}
	cached := NewCachedProvider(provider, NewEmbeddingCache(NewMemoryCache(10), time.Minute, nil))

	for i := 0; i < 3; i++ {
		vec, err := cached.Embed(ctx, "same text")
		require.NoError(t, err)
		require.Len(t, vec, 1)
	}
	if provider.embedCalls != 1 {
		t.Fatalf("重复文本应只调用底层一次, 实际 %d 次", provider.embedCalls)
	}
}

func TestCachedProvider_EmbedBatchPartialMiss(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{}
	cached := NewCachedProvider(provider, NewEmbeddingCache(NewMemoryCache(10), time.Minute, nil))

	// 预热其中一条
	_, err := cached.Embed(ctx, "aa")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(ctx, []string{"aa", "bbbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// 结果顺序与输入一致
	require.Equal(t, []float32{2}, vectors[0])
	require.Equal(t, []float32{4}, vectors[1])
	require.Equal(t, []float32{2}, vectors[2])

	if provider.batchCalls != 1 {
		t.Fatalf("缺失文本应合并为一次批量调用, 实际 %d 次", provider.batchCalls)
	}

	// 全部命中时不再调用底层
	_, err = cached.EmbedBatch(ctx, []string{"aa", "bbbb", "cc"})
	require.NoError(t, err)
	if provider.batchCalls != 1 {
		t.Fatalf("全命中批量不应触发底层调用, 实际 %d 次", provider.batchCalls)
	}
}
