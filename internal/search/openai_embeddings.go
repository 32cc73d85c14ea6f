package search

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/AshirShaikh99/creative-ai-backend/internal/metrics"
)

// OpenAIEmbeddingProvider OpenAI向量化服务提供者
type OpenAIEmbeddingProvider struct {
	client     *openai.Client
	model      string
	dimensions int // 0 表示模型默认维度
}

// NewOpenAIEmbeddingProvider 创建OpenAI向量化提供者
// baseURL 可选，用于兼容 OpenAI 协议的自建服务
// dimensions 可选，text-embedding-3 系列支持降维（如 384）
func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string, dimensions int) *OpenAIEmbeddingProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbeddingProvider{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed 将文本转换为向量
func (p *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &EmbeddingError{Provider: p.GetProviderName(), Err: fmt.Errorf("文本不能为空")}
	}

	vectors, err := p.embedBatchInternal(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化文本
// OpenAI API 单次请求最多 2048 个输入，超出时分批
func (p *OpenAIEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 2048
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := p.embedBatchInternal(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchInternal 内部批量向量化方法
func (p *OpenAIEmbeddingProvider) embedBatchInternal(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingErrorsTotal.Inc()
		return nil, &EmbeddingError{
			Provider: p.GetProviderName(),
			Err:      fmt.Errorf("调用OpenAI Embeddings API失败: %w", err),
		}
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingErrorsTotal.Inc()
		return nil, &EmbeddingError{
			Provider: p.GetProviderName(),
			Err:      fmt.Errorf("OpenAI API返回向量数量不匹配: 期望%d, 实际%d", len(texts), len(resp.Data)),
		}
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	return embeddings, nil
}

// GetDimension 获取向量维度
func (p *OpenAIEmbeddingProvider) GetDimension() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	switch p.model {
	case string(openai.LargeEmbedding3):
		return 3072
	case string(openai.SmallEmbedding3), string(openai.AdaEmbeddingV2):
		return 1536
	default:
		return 1536
	}
}

// GetModel 获取当前使用的模型
func (p *OpenAIEmbeddingProvider) GetModel() string {
	return p.model
}

// GetProviderName 获取提供商名称
func (p *OpenAIEmbeddingProvider) GetProviderName() string {
	return "openai"
}
