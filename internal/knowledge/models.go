package knowledge

import "time"

// KnowledgeBase 知识库注册表记录：一个知识库对应向量索引中的一个集合
type KnowledgeBase struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID string `json:"ownerId" gorm:"size:100;not null;uniqueIndex:idx_owner_collection,priority:1"`

	Title       string `json:"title" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`

	// 向量集合信息
	CollectionName string `json:"collectionName" gorm:"size:255;not null;uniqueIndex:idx_owner_collection,priority:2"`
	Dimension      int    `json:"dimension" gorm:"not null"`
	Distance       string `json:"distance" gorm:"size:32;not null;default:Cosine"`
	EmbeddingModel string `json:"embeddingModel" gorm:"size:100"`

	// 统计信息
	DocumentCount int `json:"documentCount" gorm:"default:0"`
	ChunkCount    int `json:"chunkCount" gorm:"default:0"`

	// 状态: creating, completed, indexing, failed
	Status string `json:"status" gorm:"size:50;not null;default:creating"`

	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
}
