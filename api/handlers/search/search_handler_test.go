package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	searchpkg "github.com/AshirShaikh99/creative-ai-backend/internal/search"
)

type stubIndex struct {
	hits     []*searchpkg.ScoredPoint
	lastOpts searchpkg.SearchOptions
}

func (s *stubIndex) CreateCollection(ctx context.Context, name string, dimension int, distance string, cfg *searchpkg.IndexConfig) error {
	return nil
}
func (s *stubIndex) DeleteCollection(ctx context.Context, name string) error { return nil }
func (s *stubIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	return name == "kb_docs", nil
}
func (s *stubIndex) CollectionInfo(ctx context.Context, name string) (*searchpkg.CollectionInfo, error) {
	return &searchpkg.CollectionInfo{}, nil
}
func (s *stubIndex) Upsert(ctx context.Context, collection string, points []*searchpkg.Point) error {
	return nil
}
func (s *stubIndex) Search(ctx context.Context, collection string, vector []float32, opts searchpkg.SearchOptions) ([]*searchpkg.ScoredPoint, error) {
	s.lastOpts = opts
	return s.hits, nil
}
func (s *stubIndex) Close() error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}
func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i := range texts {
		res[i] = []float32{1, 2, 3}
	}
	return res, nil
}
func (stubEmbedder) GetModel() string        { return "test-model" }
func (stubEmbedder) GetDimension() int       { return 3 }
func (stubEmbedder) GetProviderName() string { return "test" }

func setupSearchRouter(index *stubIndex) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := searchpkg.NewService(index, stubEmbedder{}, nil, searchpkg.ServiceOptions{})

	router := gin.New()
	router.POST("/api/search", NewHandler(svc).Search)
	return router
}

func TestSearchHandler_OK(t *testing.T) {
	index := &stubIndex{
		hits: []*searchpkg.ScoredPoint{
			{ID: "p1", Score: 0.91, Payload: map[string]any{"content": "瑞利散射", "source": "physics.txt"}},
		},
	}
	router := setupSearchRouter(index)

	body := `{
		"query": "why is the sky blue",
		"collection_name": "kb_docs",
		"limit": 3,
		"score_threshold": 0.7,
		"filter_conditions": {"source": {"match": "physics.txt"}, "year": {"range": {"gte": 2020}}}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Query   string                   `json:"query"`
		Results []searchpkg.SearchResult `json:"results"`
		Total   int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "瑞利散射", resp.Results[0].Content)

	// 请求参数应传递到索引层
	require.Equal(t, 3, index.lastOpts.Limit)
	require.Equal(t, 0.7, index.lastOpts.ScoreThreshold)
	require.Len(t, index.lastOpts.Filter, 2)
}

func TestSearchHandler_MissingCollectionReturnsEmpty(t *testing.T) {
	router := setupSearchRouter(&stubIndex{})

	body := `{"query": "anything", "collection_name": "kb_missing"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Zero(t, resp.Total)
}

func TestSearchHandler_ValidatesInput(t *testing.T) {
	router := setupSearchRouter(&stubIndex{})

	cases := []string{
		`{}`,
		`{"query": ""}`,
		`{"query": "q"}`,
		`{"collection_name": "kb_docs"}`,
		`not json`,
	}
	for _, body := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("非法请求 %q 应返回 400, 实际 %d", body, w.Code)
		}
	}
}
