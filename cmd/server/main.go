package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/AshirShaikh99/creative-ai-backend/api"
	"github.com/AshirShaikh99/creative-ai-backend/internal/config"
	"github.com/AshirShaikh99/creative-ai-backend/internal/infra"
	"github.com/AshirShaikh99/creative-ai-backend/internal/infra/queue"
	"github.com/AshirShaikh99/creative-ai-backend/internal/knowledge"
	"github.com/AshirShaikh99/creative-ai-backend/internal/logger"
	"github.com/AshirShaikh99/creative-ai-backend/internal/search"
	"github.com/AshirShaikh99/creative-ai-backend/internal/worker"
)

const (
	defaultEmbeddingTTL = 24 * time.Hour
	defaultResultTTL    = time.Hour
)

func main() {
	// .env 集中管理 APP_* 环境变量，缺失时仅用系统环境变量
	if err := godotenv.Load(); err == nil {
		fmt.Println("已加载 .env 文件")
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	// 数据库：知识库注册表，pgvector 模式下兼作向量后端
	db, err := infra.InitDatabase(&cfg.Database, cfg.Log.Level)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(&knowledge.KnowledgeBase{}); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	}

	// Redis 仅在有缓存层或队列使用时建立连接
	var rdb redis.UniversalClient
	if needsRedis(cfg) {
		rdb, err = infra.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer rdb.Close()
	}

	index, err := buildVectorIndex(cfg, db)
	if err != nil {
		logger.Fatal("初始化向量索引失败", zap.Error(err))
	}
	defer index.Close()

	// 向量化提供者，外层包缓存
	provider := search.NewOpenAIEmbeddingProvider(
		cfg.Embedding.APIKey,
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
	)
	embeddingCache := search.NewEmbeddingCache(
		buildCacheBackend(&cfg.Cache.Embedding, rdb, "embedding"),
		cfg.Cache.Embedding.ParseTTL(defaultEmbeddingTTL),
		logger.Get(),
	)
	embedder := search.NewCachedProvider(provider, embeddingCache)

	resultCache := search.NewResultCache(
		buildCacheBackend(&cfg.Cache.Result, rdb, "result"),
		cfg.Cache.Result.ParseTTL(defaultResultTTL),
		logger.Get(),
	)

	searchService := search.NewService(index, embedder, resultCache, search.ServiceOptions{
		DefaultLimit:          cfg.Search.DefaultLimit,
		DefaultScoreThreshold: cfg.Search.DefaultScoreThreshold,
		Params:                buildSearchParams(&cfg.Search.Params),
		MaxConcurrentEmbeds:   cfg.Search.MaxConcurrentEmbeds,
		Logger:                logger.Get(),
	})

	// 任务队列：Redis 可用时异步索引文档，否则同步处理
	var queueClient queue.Client
	if rdb != nil {
		queueClient = queue.NewClient(&cfg.Redis)
		defer queueClient.Close()
	}

	chunker := knowledge.NewChunker(0, 0)
	knowledgeService := knowledge.NewService(db, index, embedder, chunker, queueClient, logger.Get())

	router := api.NewRouter(cfg.Server.Mode, api.RouterOptions{
		SearchService:    searchService,
		KnowledgeService: knowledgeService,
		DB:               db,
		AllowedOrigins:   splitList(os.Getenv("CORS_ALLOW_ORIGINS")),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	var workerServer *worker.Server
	if queueClient != nil {
		workerServer = worker.NewServer(&cfg.Redis, knowledgeService, logger.Get())
		go func() {
			if err := workerServer.Run(); err != nil {
				logger.Fatal("Worker 服务器启动失败", zap.Error(err))
			}
		}()
	}

	gracefulShutdown(server, workerServer)
}

// needsRedis 判断是否需要 Redis 连接
// 任一缓存层选择 redis 后端，或配置了 Redis 地址（启用任务队列）时为真
func needsRedis(cfg *config.Config) bool {
	if cfg.Cache.Embedding.Backend == "redis" || cfg.Cache.Result.Backend == "redis" {
		return true
	}
	return cfg.Redis.Host != "" || len(cfg.Redis.SentinelAddrs) > 0 || len(cfg.Redis.ClusterAddrs) > 0
}

// buildCacheBackend 按配置构建缓存后端，默认进程内 LRU
func buildCacheBackend(tier *config.CacheTierConfig, rdb redis.UniversalClient, name string) search.Cache {
	if tier.Backend == "redis" && rdb != nil {
		return search.NewRedisCache(rdb, name, logger.Get())
	}
	return search.NewMemoryCache(tier.Capacity)
}

// buildVectorIndex 按配置构建向量索引后端
func buildVectorIndex(cfg *config.Config, db *gorm.DB) (search.VectorIndex, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VectorStore.Type)) {
	case "", "qdrant":
		return search.NewQdrantIndex(search.QdrantOptions{
			Endpoint:       cfg.VectorStore.Qdrant.Endpoint,
			APIKey:         cfg.VectorStore.Qdrant.APIKey,
			TimeoutSeconds: cfg.VectorStore.Qdrant.TimeoutSeconds,
			Logger:         logger.Get(),
		})
	case "pgvector":
		return search.NewPGVectorIndex(db)
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s (可选: qdrant, pgvector)", cfg.VectorStore.Type)
	}
}

// buildSearchParams 将配置映射为检索参数
func buildSearchParams(cfg *config.SearchParamsConfig) search.SearchParams {
	params := search.SearchParams{
		Exact:  cfg.Exact,
		HnswEF: cfg.HnswEF,
	}
	if cfg.Quantization.Enabled {
		params.Quantization = &search.QuantizationParams{
			Ignore:       cfg.Quantization.Ignore,
			Rescore:      cfg.Quantization.Rescore,
			Oversampling: cfg.Quantization.Oversampling,
		}
	}
	return params
}

// splitList 解析逗号分隔的列表
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, workerServer *worker.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if workerServer != nil {
		workerServer.Shutdown()
	}

	logger.Info("服务器已安全关闭")
}
