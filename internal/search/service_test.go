package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeIndex 记录调用参数与次数的测试索引
type fakeIndex struct {
	collections map[string]bool
	hits        []*ScoredPoint

	searchCalls int
	lastOpts    SearchOptions
	searchErr   error
}

func newFakeIndex(collections ...string) *fakeIndex {
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}
	return &fakeIndex{collections: set}
}

func (f *fakeIndex) CreateCollection(ctx context.Context, name string, dimension int, distance string, cfg *IndexConfig) error {
	if f.collections[name] {
		return &CollectionExistsError{Collection: name}
	}
	f.collections[name] = true
	return nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	return f.collections[name], nil
}

func (f *fakeIndex) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	if !f.collections[name] {
		return nil, &CollectionNotFoundError{Collection: name}
	}
	return &CollectionInfo{Status: "green"}, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []*Point) error {
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]*ScoredPoint, error) {
	f.searchCalls++
	f.lastOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) Close() error { return nil }

func newTestService(index *fakeIndex, withCache bool) *Service {
	var resultCache *ResultCache
	if withCache {
		resultCache = NewResultCache(NewMemoryCache(100), time.Minute, nil)
	}
	return NewService(index, &countingProvider{}, resultCache, ServiceOptions{})
}

func TestService_SearchMapsHits(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex("kb_docs")
	index.hits = []*ScoredPoint{
		{ID: "p1", Score: 0.92, Payload: map[string]any{
			"content":  "天空呈蓝色源于瑞利散射",
			"source":   "physics.txt",
			"metadata": map[string]any{"chunk_index": 0},
		}},
		{ID: "p2", Score: 0.73, Payload: map[string]any{
			"content": "大气中的短波长光散射更强",
		}},
	}
	svc := newTestService(index, true)

	results, err := svc.Search(ctx, &SearchRequest{Query: "天空为什么是蓝色", Collection: "kb_docs"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "天空呈蓝色源于瑞利散射", results[0].Content)
	require.Equal(t, "physics.txt", results[0].Source)
	require.Equal(t, 0.92, results[0].Score)

	// 缺失字段取默认值
	require.Equal(t, "unknown", results[1].Source)
	require.NotNil(t, results[1].Metadata)

	// 按服务默认值下发检索参数
	require.Equal(t, 5, index.lastOpts.Limit)
	require.Equal(t, 0.5, index.lastOpts.ScoreThreshold)
}

func TestService_SearchCacheHit(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex("kb_docs")
	index.hits = []*ScoredPoint{
		{ID: "p1", Score: 0.9, Payload: map[string]any{"content": "缓存验证", "source": "a.txt"}},
	}
	svc := newTestService(index, true)

	req := &SearchRequest{Query: "query", Collection: "kb_docs"}

	first, err := svc.Search(ctx, req)
	require.NoError(t, err)
	second, err := svc.Search(ctx, req)
	require.NoError(t, err)

	require.Equal(t, first, second)
	if index.searchCalls != 1 {
		t.Fatalf("第二次请求应命中结果缓存, 索引实际被调用 %d 次", index.searchCalls)
	}
}

func TestService_SearchDisableCache(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex("kb_docs")
	svc := newTestService(index, true)

	req := &SearchRequest{Query: "query", Collection: "kb_docs", DisableCache: true}
	_, err := svc.Search(ctx, req)
	require.NoError(t, err)
	_, err = svc.Search(ctx, req)
	require.NoError(t, err)

	if index.searchCalls != 2 {
		t.Fatalf("禁用缓存时每次都应检索索引, 实际 %d 次", index.searchCalls)
	}
}

func TestService_SearchMissingCollection(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex() // 无任何集合
	svc := newTestService(index, true)

	results, err := svc.Search(ctx, &SearchRequest{Query: "query", Collection: "kb_nonexistent"})
	require.NoError(t, err)
	require.Empty(t, results)
	if index.searchCalls != 0 {
		t.Fatalf("集合不存在时不应触发索引检索")
	}
}

func TestService_SearchCollectionDeletedMidway(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex("kb_docs")
	index.searchErr = &CollectionNotFoundError{Collection: "kb_docs"}
	svc := newTestService(index, false)

	// 存在性检查通过但检索时集合已删除，应降级为空结果
	results, err := svc.Search(ctx, &SearchRequest{Query: "query", Collection: "kb_docs"})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestService_SearchExplicitParams(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex("kb_docs")
	svc := newTestService(index, false)

	gte := 2020.0
	_, err := svc.Search(ctx, &SearchRequest{
		Query:          "query",
		Collection:     "kb_docs",
		Limit:          20,
		ScoreThreshold: 0.8,
		Filters: map[string]Condition{
			"year": {Range: &RangeCondition{GTE: &gte}},
		},
	})
	require.NoError(t, err)

	require.Equal(t, 20, index.lastOpts.Limit)
	require.Equal(t, 0.8, index.lastOpts.ScoreThreshold)
	require.Contains(t, index.lastOpts.Filter, "year")
}
