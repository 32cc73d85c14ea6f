package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeQdrantServer 模拟 Qdrant HTTP API 的最小子集
type fakeQdrantServer struct {
	collections map[string]int // 集合名 -> 点数
	upsertSizes []int          // 每次写入请求的点数
	searchBody  searchRequest  // 最近一次检索请求体
}

func newFakeQdrantServer() *fakeQdrantServer {
	return &fakeQdrantServer{collections: make(map[string]int)}
}

func (s *fakeQdrantServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
		collection := strings.TrimPrefix(r.URL.Path, "/collections/")
		var rest string
		if i := strings.Index(collection, "/"); i >= 0 {
			rest = collection[i:]
			collection = collection[:i]
		}

		switch {
		case rest == "" && r.Method == http.MethodGet:
			count, ok := s.collections[collection]
			if !ok {
				writeQdrantError(w, http.StatusNotFound, "Not found")
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "ok",
				"result": map[string]any{"status": "green", "points_count": count},
			})

		case rest == "" && r.Method == http.MethodPut:
			s.collections[collection] = 0
			json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": true})

		case rest == "" && r.Method == http.MethodDelete:
			if _, ok := s.collections[collection]; !ok {
				writeQdrantError(w, http.StatusNotFound, "Not found")
				return
			}
			delete(s.collections, collection)
			json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": true})

		case rest == "/points" && r.Method == http.MethodPut:
			if _, ok := s.collections[collection]; !ok {
				writeQdrantError(w, http.StatusNotFound, "Not found")
				return
			}
			var req upsertPointsRequest
			json.NewDecoder(r.Body).Decode(&req)
			s.upsertSizes = append(s.upsertSizes, len(req.Points))
			s.collections[collection] += len(req.Points)
			json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": true})

		case rest == "/points/search" && r.Method == http.MethodPost:
			if _, ok := s.collections[collection]; !ok {
				writeQdrantError(w, http.StatusNotFound, "Not found")
				return
			}
			json.NewDecoder(r.Body).Decode(&s.searchBody)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "ok",
				"result": []map[string]any{
					{"id": "p1", "score": 0.9, "payload": map[string]any{"content": "命中", "source": "a.txt"}},
				},
			})

		default:
			writeQdrantError(w, http.StatusBadRequest, "unexpected request")
		}
	})

	return mux
}

func writeQdrantError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status": map[string]any{"error": msg},
	})
}

func newTestQdrantIndex(t *testing.T) (*QdrantIndex, *fakeQdrantServer) {
	t.Helper()
	fake := newFakeQdrantServer()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	index, err := NewQdrantIndex(QdrantOptions{Endpoint: server.URL})
	require.NoError(t, err)
	return index, fake
}

func TestQdrantIndex_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestQdrantIndex(t)

	exists, err := index.CollectionExists(ctx, "kb_docs")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, index.CreateCollection(ctx, "kb_docs", 384, "Cosine", nil))

	exists, err = index.CollectionExists(ctx, "kb_docs")
	require.NoError(t, err)
	require.True(t, exists)

	// 重复创建应返回冲突错误
	err = index.CreateCollection(ctx, "kb_docs", 384, "Cosine", nil)
	var existsErr *CollectionExistsError
	require.ErrorAs(t, err, &existsErr)
	require.Equal(t, "kb_docs", existsErr.Collection)

	require.NoError(t, index.DeleteCollection(ctx, "kb_docs"))
	// 已删除的集合再次删除视为成功
	require.NoError(t, index.DeleteCollection(ctx, "kb_docs"))
}

func TestQdrantIndex_CollectionInfoNotFound(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestQdrantIndex(t)

	_, err := index.CollectionInfo(ctx, "kb_missing")
	var notFound *CollectionNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "kb_missing", notFound.Collection)
}

func TestQdrantIndex_UpsertBatching(t *testing.T) {
	ctx := context.Background()
	index, fake := newTestQdrantIndex(t)

	require.NoError(t, index.CreateCollection(ctx, "kb_docs", 4, "Cosine", nil))

	points := make([]*Point, 120)
	for i := range points {
		points[i] = &Point{
			ID:      fmt.Sprintf("p-%d", i),
			Vector:  []float32{1, 2, 3, 4},
			Payload: Payload{Content: "chunk", Source: "doc.txt"},
		}
	}
	require.NoError(t, index.Upsert(ctx, "kb_docs", points))

	// 120 个点拆成 50 + 50 + 20 三批
	require.Equal(t, []int{50, 50, 20}, fake.upsertSizes)
	require.Equal(t, 120, fake.collections["kb_docs"])
}

func TestQdrantIndex_SearchRequestShape(t *testing.T) {
	ctx := context.Background()
	index, fake := newTestQdrantIndex(t)

	require.NoError(t, index.CreateCollection(ctx, "kb_docs", 3, "Cosine", nil))

	gte := 2020.0
	hits, err := index.Search(ctx, "kb_docs", []float32{0.1, 0.2, 0.3}, SearchOptions{
		Limit:          7,
		ScoreThreshold: 0.6,
		Filter: map[string]Condition{
			"source": MatchCondition("wiki"),
			"year":   {Range: &RangeCondition{GTE: &gte}},
		},
		Params: &SearchParams{HnswEF: 128, Quantization: &QuantizationParams{Rescore: true, Oversampling: 2.0}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "p1", hits[0].ID)
	require.Equal(t, 0.9, hits[0].Score)

	// 请求体应带阈值、过滤与调优参数
	require.Equal(t, 7, fake.searchBody.Limit)
	require.NotNil(t, fake.searchBody.ScoreThreshold)
	require.Equal(t, 0.6, *fake.searchBody.ScoreThreshold)
	require.NotNil(t, fake.searchBody.Filter)
	require.Len(t, fake.searchBody.Filter.Must, 2)
	require.NotNil(t, fake.searchBody.Params)
	require.Equal(t, 128, fake.searchBody.Params.HnswEF)

	// 集合不存在时应返回类型化错误
	_, err = index.Search(ctx, "kb_missing", []float32{0.1}, SearchOptions{})
	var notFound *CollectionNotFoundError
	require.ErrorAs(t, err, &notFound)
}
