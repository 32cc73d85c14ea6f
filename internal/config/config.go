package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Search      SearchConfig      `mapstructure:"search"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置（知识库注册表 + pgvector 后端）
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 获取单节点地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// EmbeddingConfig 向量化模型配置
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`      // 默认 text-embedding-3-small
	Dimensions int    `mapstructure:"dimensions"` // 0 表示模型默认维度
}

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Type   string       `mapstructure:"type"` // qdrant, pgvector
	Qdrant QdrantConfig `mapstructure:"qdrant"`
}

// QdrantConfig Qdrant 外部向量数据库配置
type QdrantConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CacheConfig 缓存配置，向量缓存与结果缓存可独立选择后端
type CacheConfig struct {
	Embedding CacheTierConfig `mapstructure:"embedding"`
	Result    CacheTierConfig `mapstructure:"result"`
}

// CacheTierConfig 单个缓存层的配置
type CacheTierConfig struct {
	Backend  string `mapstructure:"backend"`  // memory, redis
	Capacity int    `mapstructure:"capacity"` // memory 后端最大条目数
	TTL      string `mapstructure:"ttl"`      // 如 "24h"、"1h"
}

// ParseTTL 解析 TTL 配置，非法或缺省时返回 fallback
func (c *CacheTierConfig) ParseTTL(fallback time.Duration) time.Duration {
	if c.TTL == "" {
		return fallback
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SearchConfig 检索配置
type SearchConfig struct {
	DefaultLimit          int                `mapstructure:"default_limit"`
	DefaultScoreThreshold float64            `mapstructure:"default_score_threshold"`
	MaxConcurrentEmbeds   int                `mapstructure:"max_concurrent_embeds"`
	Params                SearchParamsConfig `mapstructure:"params"`
}

// SearchParamsConfig 检索精度/性能权衡参数（精确 vs 近似、量化）
type SearchParamsConfig struct {
	Exact        bool               `mapstructure:"exact"`
	HnswEF       int                `mapstructure:"hnsw_ef"`
	Quantization QuantizationConfig `mapstructure:"quantization"`
}

// QuantizationConfig 量化检索参数
type QuantizationConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Ignore       bool    `mapstructure:"ignore"`
	Rescore      bool    `mapstructure:"rescore"`
	Oversampling float64 `mapstructure:"oversampling"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 环境变量优先级高于配置文件
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_REDIS_HOST 等

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

// applyDefaults 填充关键默认值
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.Search.DefaultLimit <= 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.DefaultScoreThreshold <= 0 {
		cfg.Search.DefaultScoreThreshold = 0.5
	}
	if cfg.Search.Params.HnswEF <= 0 {
		cfg.Search.Params.HnswEF = 128
	}
	if cfg.Search.Params.Quantization.Oversampling <= 0 {
		cfg.Search.Params.Quantization.Oversampling = 2.0
	}
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
