package knowledge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	response "github.com/AshirShaikh99/creative-ai-backend/api/handlers/common"
	"github.com/AshirShaikh99/creative-ai-backend/internal/knowledge"
	"github.com/AshirShaikh99/creative-ai-backend/internal/logger"
	"github.com/AshirShaikh99/creative-ai-backend/internal/search"
)

// Handler 知识库管理处理器
type Handler struct {
	service *knowledge.Service
}

// NewHandler 创建知识库处理器
func NewHandler(service *knowledge.Service) *Handler {
	return &Handler{service: service}
}

// CreateRequest 创建知识库请求
type CreateRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,min=1"`
	Title       string `json:"title" binding:"required,min=1"`
	Description string `json:"description"`
	FileName    string `json:"file_name" binding:"required,min=1"`
	Content     string `json:"content" binding:"required,min=1"`
}

// Create 创建知识库并索引初始文档
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	kb, err := h.service.Create(c.Request.Context(), &knowledge.CreateRequest{
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		Description: req.Description,
		FileName:    req.FileName,
		Content:     req.Content,
	})
	if err != nil {
		var exists *search.CollectionExistsError
		if errors.As(err, &exists) {
			c.JSON(http.StatusConflict, response.ErrorResponse{Success: false, Message: "知识库已存在: " + exists.Collection})
			return
		}
		logger.WithContext(c.Request.Context()).Error("创建知识库失败",
			zap.String("owner", req.OwnerID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "创建失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, response.APIResponse{Success: true, Data: kb})
}

// Get 查询知识库详情
func (h *Handler) Get(c *gin.Context) {
	kbID := c.Param("id")

	kb, err := h.service.Get(c.Request.Context(), kbID)
	if err != nil {
		if errors.Is(err, knowledge.ErrKnowledgeBaseNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "知识库不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: kb})
}

// List 按 owner 列出知识库
func (h *Handler) List(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "缺少 owner_id"})
		return
	}

	items, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

// Delete 删除知识库与对应集合
func (h *Handler) Delete(c *gin.Context) {
	kbID := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), kbID); err != nil {
		if errors.Is(err, knowledge.ErrKnowledgeBaseNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "知识库不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "删除失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "已删除"})
}

// AddDocumentRequest 追加文档请求
type AddDocumentRequest struct {
	FileName string `json:"file_name" binding:"required,min=1"`
	Content  string `json:"content" binding:"required,min=1"`
}

// AddDocument 向知识库追加文档
// 配置了任务队列时异步处理，接口立即返回
func (h *Handler) AddDocument(c *gin.Context) {
	kbID := c.Param("id")

	var req AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	if err := h.service.AddDocument(c.Request.Context(), kbID, req.FileName, req.Content); err != nil {
		if errors.Is(err, knowledge.ErrKnowledgeBaseNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "知识库不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "文档提交失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, response.APIResponse{Success: true, Message: "文档已提交处理"})
}
