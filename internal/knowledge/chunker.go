package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunker 文档分块器：按句子聚合为固定大小的重叠分块
type Chunker struct {
	ChunkSize    int // 分块大小(字符数)
	ChunkOverlap int // 重叠大小(字符数)

	encoder *tiktoken.Tiktoken
}

// Chunk 单个分块
type Chunk struct {
	Content     string
	ChunkIndex  int
	TokenCount  int
	ContentHash string // SHA-256
	Metadata    map[string]any
}

// NewChunker 创建分块器
// chunkSize: 每个分块的字符数; chunkOverlap: 相邻分块之间的重叠字符数
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}

	// cl100k_base 覆盖 text-embedding-3 系列
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoder = nil
	}

	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		encoder:      encoder,
	}
}

// ChunkDocument 对文档内容进行分块
func (c *Chunker) ChunkDocument(content string) ([]*Chunk, error) {
	content = normalizeText(content)
	if content == "" {
		return nil, fmt.Errorf("文档内容不能为空")
	}

	sentences := splitIntoSentences(content)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("文档没有有效句子")
	}

	chunks := make([]*Chunk, 0)
	current := ""
	chunkIndex := 0

	for _, sentence := range sentences {
		if len(current)+len(sentence) > c.ChunkSize && current != "" {
			chunks = append(chunks, c.buildChunk(current, chunkIndex))
			chunkIndex++

			// 新分块从上一块尾部的重叠文本接续
			current = c.overlapText(current)
			if current != "" {
				current += " "
			}
			current += sentence
			continue
		}

		if current != "" {
			current += " "
		}
		current += sentence
	}

	if current != "" {
		chunks = append(chunks, c.buildChunk(current, chunkIndex))
	}

	return chunks, nil
}

// buildChunk 构造分块
func (c *Chunker) buildChunk(content string, index int) *Chunk {
	content = strings.TrimSpace(content)
	return &Chunk{
		Content:     content,
		ChunkIndex:  index,
		TokenCount:  c.countTokens(content),
		ContentHash: hashContent(content),
	}
}

// countTokens 统计 Token 数量，编码器不可用时按 4 字符/Token 估算
func (c *Chunker) countTokens(text string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// overlapText 取文本末尾的重叠部分，尽量从完整单词开始
func (c *Chunker) overlapText(text string) string {
	if c.ChunkOverlap == 0 || len(text) <= c.ChunkOverlap {
		return ""
	}

	overlap := text[len(text)-c.ChunkOverlap:]
	if idx := strings.Index(overlap, " "); idx > 0 {
		overlap = overlap[idx+1:]
	}
	return overlap
}

// normalizeText 规范化文本：折叠空白
func normalizeText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// splitIntoSentences 按句号/问号/感叹号切分句子（中英文标点）
func splitIntoSentences(text string) []string {
	sentences := make([]string, 0)
	var builder strings.Builder

	for _, r := range text {
		builder.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			sentence := strings.TrimSpace(builder.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			builder.Reset()
		}
	}

	if rest := strings.TrimSpace(builder.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// hashContent 计算内容哈希
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
