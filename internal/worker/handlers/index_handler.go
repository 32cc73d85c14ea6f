package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/AshirShaikh99/creative-ai-backend/internal/knowledge"
	"github.com/AshirShaikh99/creative-ai-backend/internal/worker/tasks"
)

// IndexHandler 文档索引任务处理器
type IndexHandler struct {
	service *knowledge.Service
	logger  *zap.Logger
}

func NewIndexHandler(service *knowledge.Service, logger *zap.Logger) *IndexHandler {
	return &IndexHandler{
		service: service,
		logger:  logger,
	}
}

func (h *IndexHandler) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var p tasks.IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始文档索引任务",
		zap.String("knowledge_base", p.KnowledgeBaseID),
		zap.String("source", p.Source),
	)

	if err := h.service.IndexDocument(ctx, p.KnowledgeBaseID, p.Source, p.Content); err != nil {
		h.logger.Error("文档索引失败",
			zap.String("knowledge_base", p.KnowledgeBaseID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("文档索引任务完成", zap.String("knowledge_base", p.KnowledgeBaseID))
	return nil
}
