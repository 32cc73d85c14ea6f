package search

import "context"

// EmbeddingProvider 抽象不同向量模型/服务的统一接口
// 约束：同一文本必须产出相同向量（缓存正确性依赖于此）
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetModel() string
	GetDimension() int
	GetProviderName() string
}
