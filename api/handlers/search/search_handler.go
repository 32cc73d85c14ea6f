package search

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	response "github.com/AshirShaikh99/creative-ai-backend/api/handlers/common"
	"github.com/AshirShaikh99/creative-ai-backend/internal/logger"
	"github.com/AshirShaikh99/creative-ai-backend/internal/search"
)

// Handler 语义检索处理器
type Handler struct {
	service *search.Service
}

// NewHandler 创建检索处理器
func NewHandler(service *search.Service) *Handler {
	return &Handler{service: service}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query          string                      `json:"query" binding:"required,min=1"`
	CollectionName string                      `json:"collection_name" binding:"required,min=1"`
	Limit          int                         `json:"limit"`
	ScoreThreshold float64                     `json:"score_threshold"`
	Filters        map[string]search.Condition `json:"filter_conditions"`
	UseCache       *bool                       `json:"use_cache"`
}

// Search 语义检索
// 对指定集合执行向量相似度检索，结果按相关度降序返回
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	limit := req.Limit
	if limit > 100 {
		limit = 100
	}

	svcReq := &search.SearchRequest{
		Query:          req.Query,
		Collection:     req.CollectionName,
		Limit:          limit,
		ScoreThreshold: req.ScoreThreshold,
		Filters:        req.Filters,
	}
	if req.UseCache != nil && !*req.UseCache {
		svcReq.DisableCache = true
	}

	results, err := h.service.Search(c.Request.Context(), svcReq)
	if err != nil {
		var embErr *search.EmbeddingError
		if errors.As(err, &embErr) {
			c.JSON(http.StatusBadGateway, response.ErrorResponse{Success: false, Message: "向量化失败: " + err.Error()})
			return
		}
		logger.WithContext(c.Request.Context()).Error("检索失败",
			zap.String("collection", req.CollectionName),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "检索失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":           req.Query,
		"collection_name": req.CollectionName,
		"results":         results,
		"total":           len(results),
	})
}
