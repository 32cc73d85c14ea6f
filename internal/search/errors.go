package search

import "fmt"

// EmbeddingError 向量化提供者/模型错误，不在本层自动重试
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding 失败 (provider=%s): %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CollectionNotFoundError 目标集合不存在
// 检索服务会就地恢复（按空结果处理），但必须与真实的零命中可区分
type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("集合不存在: %s", e.Collection)
}

// CollectionExistsError 集合创建冲突，直接上抛不重试
type CollectionExistsError struct {
	Collection string
}

func (e *CollectionExistsError) Error() string {
	return fmt.Sprintf("集合已存在: %s", e.Collection)
}

// SearchError 包装检索主路径上的其他索引查询错误
type SearchError struct {
	Collection string
	Err        error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("检索失败 (collection=%s): %v", e.Collection, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
