package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PGVectorIndex 基于 PostgreSQL pgvector 扩展的向量索引实现
// 作为 Qdrant 的备选后端，仅支持精确余弦检索（SearchParams 被忽略）
type PGVectorIndex struct {
	db *gorm.DB
}

// vectorCollection 集合注册表记录
type vectorCollection struct {
	Name      string    `gorm:"primaryKey;size:255"`
	Dimension int       `gorm:"not null"`
	Distance  string    `gorm:"size:32;not null;default:Cosine"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (vectorCollection) TableName() string { return "vector_collections" }

// vectorPoint 向量点记录，payload 以 JSONB 存储
type vectorPoint struct {
	ID         string          `gorm:"primaryKey;type:uuid"`
	Collection string          `gorm:"size:255;not null;index"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	Payload    json.RawMessage `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"not null;autoCreateTime"`
}

func (vectorPoint) TableName() string { return "vector_points" }

// NewPGVectorIndex 创建 pgvector 索引实例
func NewPGVectorIndex(db *gorm.DB) (*PGVectorIndex, error) {
	idx := &PGVectorIndex{db: db}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("启用 pgvector 扩展失败: %w", err)
	}
	if err := db.AutoMigrate(&vectorCollection{}, &vectorPoint{}); err != nil {
		return nil, fmt.Errorf("迁移 pgvector 表结构失败: %w", err)
	}

	return idx, nil
}

// CreateCollection 注册集合，名称冲突时返回 CollectionExistsError
// pgvector 后端没有图索引，IndexConfig 不适用
func (s *PGVectorIndex) CreateCollection(ctx context.Context, name string, dimension int, distance string, _ *IndexConfig) error {
	if dimension <= 0 {
		return fmt.Errorf("向量维度必须为正数: %d", dimension)
	}
	if distance == "" {
		distance = "Cosine"
	}

	record := &vectorCollection{Name: name, Dimension: dimension, Distance: distance}
	err := s.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate") {
			return &CollectionExistsError{Collection: name}
		}
		return fmt.Errorf("注册集合失败: %w", err)
	}
	return nil
}

// DeleteCollection 删除集合及其全部点，集合不存在视为成功
func (s *PGVectorIndex) DeleteCollection(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", name).Delete(&vectorPoint{}).Error; err != nil {
			return fmt.Errorf("删除集合点失败: %w", err)
		}
		if err := tx.Where("name = ?", name).Delete(&vectorCollection{}).Error; err != nil {
			return fmt.Errorf("删除集合记录失败: %w", err)
		}
		return nil
	})
}

// CollectionExists 检查集合是否已注册
func (s *PGVectorIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&vectorCollection{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询集合失败: %w", err)
	}
	return count > 0, nil
}

// CollectionInfo 查询集合点数
func (s *PGVectorIndex) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &CollectionNotFoundError{Collection: name}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&vectorPoint{}).
		Where("collection = ?", name).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("统计集合点数失败: %w", err)
	}
	return &CollectionInfo{PointCount: count, Status: "green"}, nil
}

// Upsert 按 ID 写入或替换点
func (s *PGVectorIndex) Upsert(ctx context.Context, collection string, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	var meta vectorCollection
	if err := s.db.WithContext(ctx).Where("name = ?", collection).First(&meta).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CollectionNotFoundError{Collection: collection}
		}
		return fmt.Errorf("查询集合失败: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range points {
			if p == nil {
				continue
			}
			if len(p.Vector) != meta.Dimension {
				return fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", meta.Dimension, len(p.Vector))
			}

			payload, err := json.Marshal(map[string]any{
				"content":  p.Payload.Content,
				"source":   p.Payload.Source,
				"metadata": p.Payload.Metadata,
			})
			if err != nil {
				return fmt.Errorf("序列化 payload 失败: %w", err)
			}

			record := &vectorPoint{
				ID:         p.ID,
				Collection: collection,
				Embedding:  pgvector.NewVector(p.Vector),
				Payload:    payload,
			}
			if err := tx.Save(record).Error; err != nil {
				return fmt.Errorf("写入向量点失败: %w", err)
			}
		}
		return nil
	})
}

// Search 精确余弦相似度检索
// 1 - (embedding <=> query) 为余弦相似度，<=> 是 pgvector 的余弦距离操作符
func (s *PGVectorIndex) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]*ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &CollectionNotFoundError{Collection: collection}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	query := s.db.WithContext(ctx).
		Table("vector_points").
		Select("id, payload, 1 - (embedding <=> ?) AS similarity", pgvector.NewVector(vector)).
		Where("collection = ?", collection)

	for key, cond := range opts.Filter {
		query = applyPayloadCondition(query, key, cond)
	}

	if opts.ScoreThreshold > 0 {
		query = query.Where("1 - (embedding <=> ?) >= ?", pgvector.NewVector(vector), opts.ScoreThreshold)
	}

	var rows []struct {
		ID         string          `gorm:"column:id"`
		Payload    json.RawMessage `gorm:"column:payload"`
		Similarity float64         `gorm:"column:similarity"`
	}
	if err := query.
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{pgvector.NewVector(vector)}}).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	hits := make([]*ScoredPoint, 0, len(rows))
	for _, row := range rows {
		var payload map[string]any
		_ = json.Unmarshal(row.Payload, &payload)
		hits = append(hits, &ScoredPoint{
			ID:      row.ID,
			Score:   row.Similarity,
			Payload: payload,
		})
	}
	return hits, nil
}

// Close pgvector 连接由外部数据库句柄管理
func (s *PGVectorIndex) Close() error { return nil }

// applyPayloadCondition 将过滤条件翻译为 JSONB 查询
func applyPayloadCondition(query *gorm.DB, key string, cond Condition) *gorm.DB {
	if cond.Range != nil {
		if cond.Range.GT != nil {
			query = query.Where("(payload ->> ?)::numeric > ?", key, *cond.Range.GT)
		}
		if cond.Range.GTE != nil {
			query = query.Where("(payload ->> ?)::numeric >= ?", key, *cond.Range.GTE)
		}
		if cond.Range.LT != nil {
			query = query.Where("(payload ->> ?)::numeric < ?", key, *cond.Range.LT)
		}
		if cond.Range.LTE != nil {
			query = query.Where("(payload ->> ?)::numeric <= ?", key, *cond.Range.LTE)
		}
		return query
	}
	return query.Where("payload ->> ? = ?", key, fmt.Sprint(cond.Match))
}
