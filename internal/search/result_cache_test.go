package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResultCacheKey_Deterministic(t *testing.T) {
	gte := 2020.0
	conditionsA := map[string]Condition{
		"source": MatchCondition("wiki"),
		"year":   {Range: &RangeCondition{GTE: &gte}},
	}
	// 同样的条件以不同顺序构造
	conditionsB := map[string]Condition{
		"year":   {Range: &RangeCondition{GTE: &gte}},
		"source": MatchCondition("wiki"),
	}

	keyA := ResultCacheKey("天空为什么是蓝色", "kb_docs", 5, 0.5, conditionsA)
	keyB := ResultCacheKey("天空为什么是蓝色", "kb_docs", 5, 0.5, conditionsB)
	if keyA != keyB {
		t.Fatalf("语义相同的请求应生成同一缓存键: %s != %s", keyA, keyB)
	}
}

func TestResultCacheKey_SensitiveToParams(t *testing.T) {
	base := ResultCacheKey("query", "kb_docs", 5, 0.5, nil)

	variants := []string{
		ResultCacheKey("other", "kb_docs", 5, 0.5, nil),
		ResultCacheKey("query", "kb_other", 5, 0.5, nil),
		ResultCacheKey("query", "kb_docs", 10, 0.5, nil),
		ResultCacheKey("query", "kb_docs", 5, 0.7, nil),
		ResultCacheKey("query", "kb_docs", 5, 0.5, map[string]Condition{"source": MatchCondition("wiki")}),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("变体 %d 不应与基准键相同", i)
		}
	}
}

func TestResultCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(NewMemoryCache(10), time.Minute, nil)

	key := ResultCacheKey("query", "kb_docs", 5, 0.5, nil)
	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("空缓存不应命中")
	}

	results := []SearchResult{
		{Content: "瑞利散射", Score: 0.92, Source: "physics.txt", Metadata: map[string]any{"chunk_index": float64(0)}},
		{Content: "大气成分", Score: 0.81, Source: "physics.txt", Metadata: map[string]any{}},
	}
	cache.Set(ctx, key, results)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	require.Equal(t, results, got)
}
