package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	knowledgeHandler "github.com/AshirShaikh99/creative-ai-backend/api/handlers/knowledge"
	searchHandler "github.com/AshirShaikh99/creative-ai-backend/api/handlers/search"
	"github.com/AshirShaikh99/creative-ai-backend/internal/knowledge"
	"github.com/AshirShaikh99/creative-ai-backend/internal/search"
)

// RouterOptions 路由装配依赖
type RouterOptions struct {
	SearchService    *search.Service
	KnowledgeService *knowledge.Service
	DB               *gorm.DB
	AllowedOrigins   []string
}

// NewRouter 构建 gin 引擎并注册全部路由
func NewRouter(mode string, opts RouterOptions) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(), Metrics(), CORS(opts.AllowedOrigins))

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(opts.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sh := searchHandler.NewHandler(opts.SearchService)
	kh := knowledgeHandler.NewHandler(opts.KnowledgeService)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/search", sh.Search)

		kbGroup := apiGroup.Group("/knowledge-bases")
		{
			kbGroup.POST("", kh.Create)
			kbGroup.GET("", kh.List)
			kbGroup.GET("/:id", kh.Get)
			kbGroup.DELETE("/:id", kh.Delete)
			kbGroup.POST("/:id/documents", kh.AddDocument)
		}
	}

	return router
}

// HealthCheck 健康检查
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "semantic-search",
		})
	}
}

// ReadinessCheck 就绪检查，包含数据库连通性
func ReadinessCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.Ping() != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not_ready",
					"reason": "database unavailable",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	}
}
