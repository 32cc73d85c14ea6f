package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AshirShaikh99/creative-ai-backend/internal/infra/queue"
	"github.com/AshirShaikh99/creative-ai-backend/internal/search"
	"github.com/AshirShaikh99/creative-ai-backend/internal/worker/tasks"
)

const (
	// embedBatchSize 向量化批大小
	embedBatchSize = 32
	// maxContentLength 单个分块入库时的内容长度上限
	maxContentLength = 5000
	// maxSlugLength 集合名 slug 的长度上限
	maxSlugLength = 50
)

// ErrKnowledgeBaseNotFound 知识库不存在
var ErrKnowledgeBaseNotFound = errors.New("知识库不存在")

// Service 知识库服务：管理集合生命周期与文档索引
type Service struct {
	db       *gorm.DB
	index    search.VectorIndex
	embedder search.EmbeddingProvider
	chunker  *Chunker
	queue    queue.Client
	logger   *zap.Logger
}

// NewService 创建知识库服务
// queue 可为 nil，此时 AddDocument 同步执行索引
func NewService(
	db *gorm.DB,
	index search.VectorIndex,
	embedder search.EmbeddingProvider,
	chunker *Chunker,
	queueClient queue.Client,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		queue:    queueClient,
		logger:   logger,
	}
}

// CreateRequest 创建知识库请求
type CreateRequest struct {
	OwnerID     string
	Title       string
	Description string
	FileName    string // 初始文档来源标识
	Content     string // 初始文档内容
}

// Create 创建知识库：建集合、索引初始文档、登记注册表
// 标题冲突时返回 CollectionExistsError；处理失败时回收已建集合
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*KnowledgeBase, error) {
	if req.OwnerID == "" || req.Title == "" {
		return nil, fmt.Errorf("owner 与 title 不能为空")
	}

	collectionName := fmt.Sprintf("kb_%s_%s", req.OwnerID, sanitizeCollectionName(req.Title))
	start := time.Now()

	dimension := s.embedder.GetDimension()
	err := s.index.CreateCollection(ctx, collectionName, dimension, "Cosine", search.DefaultIndexConfig())
	if err != nil {
		var exists *search.CollectionExistsError
		if errors.As(err, &exists) {
			return nil, err
		}
		return nil, fmt.Errorf("创建集合失败: %w", err)
	}
	s.logger.Info("集合创建成功",
		zap.String("collection", collectionName),
		zap.Int("dimension", dimension),
	)

	chunkCount, err := s.indexContent(ctx, collectionName, req.FileName, req.Content)
	if err != nil {
		// 处理失败则回收集合，清理失败只记录日志
		if cleanupErr := s.index.DeleteCollection(ctx, collectionName); cleanupErr != nil {
			s.logger.Error("清理集合失败",
				zap.String("collection", collectionName),
				zap.Error(cleanupErr),
			)
		}
		return nil, fmt.Errorf("处理初始文档失败: %w", err)
	}

	kb := &KnowledgeBase{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		Title:          req.Title,
		Description:    req.Description,
		CollectionName: collectionName,
		Dimension:      dimension,
		Distance:       "Cosine",
		EmbeddingModel: s.embedder.GetModel(),
		DocumentCount:  1,
		ChunkCount:     chunkCount,
		Status:         "completed",
	}
	if err := s.db.WithContext(ctx).Create(kb).Error; err != nil {
		if cleanupErr := s.index.DeleteCollection(ctx, collectionName); cleanupErr != nil {
			s.logger.Error("清理集合失败",
				zap.String("collection", collectionName),
				zap.Error(cleanupErr),
			)
		}
		return nil, fmt.Errorf("登记知识库失败: %w", err)
	}

	s.logger.Info("知识库创建完成",
		zap.String("id", kb.ID),
		zap.String("collection", collectionName),
		zap.Int("chunks", chunkCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return kb, nil
}

// AddDocument 向已有知识库追加文档
// 配置了队列时异步入队，否则同步索引
func (s *Service) AddDocument(ctx context.Context, kbID, source, content string) error {
	kb, err := s.Get(ctx, kbID)
	if err != nil {
		return err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueIndexDocument(tasks.IndexDocumentPayload{
			KnowledgeBaseID: kb.ID,
			Source:          source,
			Content:         content,
		}); err != nil {
			return fmt.Errorf("任务入队失败: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(kb).Update("status", "indexing").Error; err != nil {
			s.logger.Warn("更新知识库状态失败", zap.String("id", kb.ID), zap.Error(err))
		}
		return nil
	}

	return s.IndexDocument(ctx, kb.ID, source, content)
}

// IndexDocument 对文档执行分块、向量化与写入，并更新统计
// 由 worker 或同步路径调用
func (s *Service) IndexDocument(ctx context.Context, kbID, source, content string) error {
	kb, err := s.Get(ctx, kbID)
	if err != nil {
		return err
	}

	chunkCount, err := s.indexContent(ctx, kb.CollectionName, source, content)
	if err != nil {
		if updErr := s.db.WithContext(ctx).Model(kb).Update("status", "failed").Error; updErr != nil {
			s.logger.Warn("更新知识库状态失败", zap.String("id", kb.ID), zap.Error(updErr))
		}
		return fmt.Errorf("索引文档失败: %w", err)
	}

	updates := map[string]any{
		"status":         "completed",
		"document_count": gorm.Expr("document_count + 1"),
		"chunk_count":    gorm.Expr("chunk_count + ?", chunkCount),
	}
	if err := s.db.WithContext(ctx).Model(kb).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新知识库统计失败: %w", err)
	}

	s.logger.Info("文档索引完成",
		zap.String("knowledge_base", kb.ID),
		zap.String("source", source),
		zap.Int("chunks", chunkCount),
	)
	return nil
}

// Delete 删除知识库：先删集合再删注册记录
// 集合删除失败只记录日志，注册记录仍然移除
func (s *Service) Delete(ctx context.Context, kbID string) error {
	kb, err := s.Get(ctx, kbID)
	if err != nil {
		return err
	}

	if err := s.index.DeleteCollection(ctx, kb.CollectionName); err != nil {
		s.logger.Error("删除集合失败",
			zap.String("collection", kb.CollectionName),
			zap.Error(err),
		)
	}

	if err := s.db.WithContext(ctx).Delete(kb).Error; err != nil {
		return fmt.Errorf("删除知识库记录失败: %w", err)
	}
	return nil
}

// Get 查询知识库
func (s *Service) Get(ctx context.Context, kbID string) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", kbID).
		First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKnowledgeBaseNotFound
		}
		return nil, fmt.Errorf("查询知识库失败: %w", err)
	}
	return &kb, nil
}

// List 按 owner 列出知识库
func (s *Service) List(ctx context.Context, ownerID string) ([]*KnowledgeBase, error) {
	var items []*KnowledgeBase
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("查询知识库列表失败: %w", err)
	}
	return items, nil
}

// indexContent 分块 + 批量向量化 + 写入索引，返回分块数
func (s *Service) indexContent(ctx context.Context, collection, source, content string) (int, error) {
	chunks, err := s.chunker.ChunkDocument(content)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("批量向量化失败 (batch %d-%d): %w", start, end, err)
		}

		points := make([]*search.Point, len(batch))
		for i, chunk := range batch {
			text := chunk.Content
			if len(text) > maxContentLength {
				text = text[:maxContentLength]
			}
			points[i] = &search.Point{
				ID:     uuid.New().String(),
				Vector: embeddings[i],
				Payload: search.Payload{
					Content: text,
					Source:  source,
					Metadata: map[string]any{
						"chunk_index": chunk.ChunkIndex,
						"token_count": chunk.TokenCount,
						"chunk_hash":  chunk.ContentHash,
					},
				},
			}
		}

		if err := s.index.Upsert(ctx, collection, points); err != nil {
			return 0, fmt.Errorf("写入向量失败 (batch %d-%d): %w", start, end, err)
		}
	}

	return len(chunks), nil
}

// sanitizeCollectionName 将标题转为合法集合名
// 小写、非字母数字替换为下划线、截断到长度上限
func sanitizeCollectionName(title string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) && r < 128 {
			builder.WriteRune(r)
		} else {
			builder.WriteRune('_')
		}
	}
	slug := builder.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}
