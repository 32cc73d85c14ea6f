package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AshirShaikh99/creative-ai-backend/internal/metrics"
)

// upsertBatchSize 单次写入请求的最大点数，限制请求体积并隔离批次级失败
const upsertBatchSize = 50

// QdrantOptions 初始化 Qdrant 向量索引客户端的配置
type QdrantOptions struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// QdrantIndex 基于 Qdrant HTTP API 的向量索引客户端
// 实例由启动流程显式构建并注入，进程内复用同一连接
type QdrantIndex struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewQdrantIndex 创建 Qdrant 向量索引客户端
func NewQdrantIndex(opts QdrantOptions) (*QdrantIndex, error) {
	baseURL := strings.TrimSpace(opts.Endpoint)
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant endpoint 不能为空")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QdrantIndex{
		client:  client,
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		logger:  logger,
	}, nil
}

// CreateCollection 创建集合，名称冲突时返回 CollectionExistsError
func (q *QdrantIndex) CreateCollection(ctx context.Context, name string, dimension int, distance string, cfg *IndexConfig) error {
	exists, err := q.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return &CollectionExistsError{Collection: name}
	}

	if dimension <= 0 {
		return fmt.Errorf("向量维度必须为正数: %d", dimension)
	}
	if distance == "" {
		distance = "Cosine"
	}
	if cfg == nil {
		cfg = DefaultIndexConfig()
	}

	req := createCollectionRequest{
		Vectors: qdrantVectorParams{
			Size:     dimension,
			Distance: distance,
		},
		HnswConfig:       cfg.Hnsw,
		OptimizersConfig: cfg.Optimizers,
	}

	var resp qdrantOperationResponse
	if _, err := q.doRequest(ctx, http.MethodPut, q.collectionPath(name, ""), req, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("创建集合失败: %s", resp.Error)
	}
	return nil
}

// DeleteCollection 删除集合及其全部点
// 本方法会在失败清理路径中被调用，集合不存在视为成功
func (q *QdrantIndex) DeleteCollection(ctx context.Context, name string) error {
	code, err := q.doRequest(ctx, http.MethodDelete, q.collectionPath(name, ""), nil, nil)
	if err != nil {
		if code == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// CollectionExists 检查集合是否存在
func (q *QdrantIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	var resp collectionInfoResponse
	code, err := q.doRequest(ctx, http.MethodGet, q.collectionPath(name, ""), nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return resp.Status == "ok", nil
}

// CollectionInfo 查询集合状态与点数
func (q *QdrantIndex) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	var resp collectionInfoResponse
	code, err := q.doRequest(ctx, http.MethodGet, q.collectionPath(name, ""), nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return nil, &CollectionNotFoundError{Collection: name}
		}
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("查询集合信息失败: %s", resp.Error)
	}
	return &CollectionInfo{
		PointCount: resp.Result.PointsCount,
		Status:     resp.Result.Status,
	}, nil
}

// Upsert 按 ID 写入或替换点，内部按 upsertBatchSize 分批
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		batch := make([]qdrantPoint, 0, end-start)
		for _, p := range points[start:end] {
			if p == nil {
				continue
			}
			batch = append(batch, qdrantPoint{
				ID:     p.ID,
				Vector: p.Vector,
				Payload: map[string]any{
					"content":  p.Payload.Content,
					"source":   p.Payload.Source,
					"metadata": p.Payload.Metadata,
				},
			})
		}

		req := upsertPointsRequest{Points: batch}
		var resp qdrantOperationResponse
		code, err := q.doRequest(ctx, http.MethodPut, q.pointsPath(collection, "?wait=true"), req, &resp)
		if err != nil {
			if code == http.StatusNotFound {
				return &CollectionNotFoundError{Collection: collection}
			}
			return fmt.Errorf("写入向量失败 (batch %d-%d): %w", start, end, err)
		}
		if resp.Status != "ok" {
			return fmt.Errorf("写入向量失败 (batch %d-%d): %s", start, end, resp.Error)
		}
		metrics.IndexUpsertsTotal.WithLabelValues(collection).Add(float64(len(batch)))
	}

	return nil
}

// Search 相似度检索
// 集合不存在时快速失败并返回 CollectionNotFoundError，与零命中可区分
func (q *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]*ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		Params:      opts.Params,
	}
	if opts.ScoreThreshold > 0 {
		req.ScoreThreshold = &opts.ScoreThreshold
	}
	if len(opts.Filter) > 0 {
		req.Filter = buildQdrantFilter(opts.Filter)
	}

	var resp searchResponse
	code, err := q.doRequest(ctx, http.MethodPost, q.pointsPath(collection, "/search"), req, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return nil, &CollectionNotFoundError{Collection: collection}
		}
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("qdrant search 失败: %s", resp.Error)
	}

	hits := make([]*ScoredPoint, 0, len(resp.Result))
	for _, item := range resp.Result {
		hits = append(hits, &ScoredPoint{
			ID:      fmt.Sprint(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return hits, nil
}

// Close 释放底层连接
func (q *QdrantIndex) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

// --- 内部辅助 ---

func (q *QdrantIndex) collectionPath(collection, suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(collection), suffix)
}

func (q *QdrantIndex) pointsPath(collection, suffix string) string {
	return fmt.Sprintf("/collections/%s/points%s", url.PathEscape(collection), suffix)
}

// doRequest 发送请求并解析响应，返回 HTTP 状态码供调用方区分 404
func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, payload any, dest any) (int, error) {
	start := time.Now()
	defer func() {
		metrics.IndexRequestDuration.WithLabelValues(method + " " + trimPathLabel(path)).Observe(time.Since(start).Seconds())
	}()

	var bodyReader *bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("序列化请求失败: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bodyReader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return resp.StatusCode, fmt.Errorf("qdrant API 错误: %s (%d)", errBody.Status.Error, resp.StatusCode)
	}

	if dest == nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(dest)
}

// trimPathLabel 去掉集合名，避免指标标签基数爆炸
func trimPathLabel(path string) string {
	if idx := strings.Index(path, "/points"); idx >= 0 {
		return "/collections/{name}" + path[idx:]
	}
	return "/collections/{name}"
}

// buildQdrantFilter 将字段->条件映射翻译为 Qdrant 过滤 AST（must 语义）
func buildQdrantFilter(conditions map[string]Condition) *qdrantFilter {
	must := make([]fieldCondition, 0, len(conditions))
	for key, cond := range conditions {
		fc := fieldCondition{Key: key}
		if cond.Range != nil {
			fc.Range = cond.Range
		} else {
			fc.Match = &fieldMatch{Value: cond.Match}
		}
		must = append(must, fc)
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrantFilter{Must: must}
}

// --- Qdrant API payloads ---

type qdrantVectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors          qdrantVectorParams `json:"vectors"`
	HnswConfig       *HnswConfig        `json:"hnsw_config,omitempty"`
	OptimizersConfig *OptimizersConfig  `json:"optimizers_config,omitempty"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertPointsRequest struct {
	Points []qdrantPoint `json:"points"`
}

type fieldCondition struct {
	Key   string          `json:"key"`
	Match *fieldMatch     `json:"match,omitempty"`
	Range *RangeCondition `json:"range,omitempty"`
}

type fieldMatch struct {
	Value any `json:"value"`
}

type qdrantFilter struct {
	Must []fieldCondition `json:"must,omitempty"`
}

type searchRequest struct {
	Vector         []float32     `json:"vector"`
	Limit          int           `json:"limit"`
	WithPayload    bool          `json:"with_payload"`
	ScoreThreshold *float64      `json:"score_threshold,omitempty"`
	Filter         *qdrantFilter `json:"filter,omitempty"`
	Params         *SearchParams `json:"params,omitempty"`
}

type searchResponse struct {
	Status string              `json:"status"`
	Result []searchResultEntry `json:"result"`
	Error  string              `json:"error"`
}

type searchResultEntry struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type qdrantOperationResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type collectionInfoResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Result struct {
		Status      string `json:"status"`
		PointsCount int64  `json:"points_count"`
	} `json:"result"`
}
