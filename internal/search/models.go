package search

import "context"

// Payload 向量点挂载的内容片段（内容 + 来源 + 开放元数据）
type Payload struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Point 写入向量索引的持久化单元
type Point struct {
	ID      string    // UUID
	Vector  []float32 // 向量，同一集合内维度一致
	Payload Payload
}

// ScoredPoint 索引返回的原始命中
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// SearchResult 一次检索的最终结果，按相似度降序
type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
	Source   string         `json:"source"`
}

// CollectionInfo 集合状态信息
type CollectionInfo struct {
	PointCount int64
	Status     string
}

// HnswConfig HNSW 图索引参数
type HnswConfig struct {
	M                  int `json:"m,omitempty"`
	EfConstruct        int `json:"ef_construct,omitempty"`
	FullScanThreshold  int `json:"full_scan_threshold,omitempty"`
	MaxIndexingThreads int `json:"max_indexing_threads,omitempty"`
}

// OptimizersConfig 段合并/压缩等优化器参数
type OptimizersConfig struct {
	MemmapThreshold        int     `json:"memmap_threshold,omitempty"`
	IndexingThreshold      int     `json:"indexing_threshold,omitempty"`
	MaxOptimizationThreads int     `json:"max_optimization_threads,omitempty"`
	DeletedThreshold       float64 `json:"deleted_threshold,omitempty"`
	VacuumMinVectorNumber  int     `json:"vacuum_min_vector_number,omitempty"`
	DefaultSegmentNumber   int     `json:"default_segment_number,omitempty"`
	FlushIntervalSec       int     `json:"flush_interval_sec,omitempty"`
}

// IndexConfig 集合级索引配置
type IndexConfig struct {
	Hnsw       *HnswConfig
	Optimizers *OptimizersConfig
}

// DefaultIndexConfig 默认索引配置
func DefaultIndexConfig() *IndexConfig {
	return &IndexConfig{
		Hnsw: &HnswConfig{
			M:                  16,
			EfConstruct:        200,
			FullScanThreshold:  10000,
			MaxIndexingThreads: 4,
		},
		Optimizers: &OptimizersConfig{
			MemmapThreshold:        10000,
			IndexingThreshold:      20000,
			MaxOptimizationThreads: 4,
			DeletedThreshold:       0.2,
			VacuumMinVectorNumber:  1000,
			DefaultSegmentNumber:   2,
			FlushIntervalSec:       5,
		},
	}
}

// QuantizationParams 量化检索参数
type QuantizationParams struct {
	Ignore       bool    `json:"ignore"`
	Rescore      bool    `json:"rescore"`
	Oversampling float64 `json:"oversampling,omitempty"`
}

// SearchParams 检索精度/性能权衡参数
// Exact=true 时走暴力检索；否则按 HnswEF 控制近似检索的候选列表规模
type SearchParams struct {
	Exact        bool                `json:"exact"`
	HnswEF       int                 `json:"hnsw_ef,omitempty"`
	Quantization *QuantizationParams `json:"quantization,omitempty"`
}

// SearchOptions 单次索引查询的全部选项
type SearchOptions struct {
	Limit          int
	ScoreThreshold float64
	Filter         map[string]Condition
	Params         *SearchParams
}

// VectorIndex 抽象向量索引客户端，可由不同后端实现（Qdrant、pgvector）
type VectorIndex interface {
	CreateCollection(ctx context.Context, name string, dimension int, distance string, cfg *IndexConfig) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)
	Upsert(ctx context.Context, collection string, points []*Point) error
	Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]*ScoredPoint, error)
	Close() error
}
