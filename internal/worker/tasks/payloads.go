package tasks

// Task Types
const (
	TypeIndexDocument = "knowledge:index_document"
)

// IndexDocumentPayload 文档索引任务载荷
type IndexDocumentPayload struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Source          string `json:"source"`
	Content         string `json:"content"`
}
