package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunker_SmallDocumentSingleChunk(t *testing.T) {
	chunker := NewChunker(500, 50)

	chunks, err := chunker.ChunkDocument("Hello world. 这是一个很短的文档。")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.NotEmpty(t, chunks[0].ContentHash)
	if chunks[0].TokenCount <= 0 {
		t.Fatalf("分块应带 Token 统计, 实际 %d", chunks[0].TokenCount)
	}
}

func TestChunker_SplitsLongDocument(t *testing.T) {
	chunker := NewChunker(100, 20)

	var builder strings.Builder
	for i := 0; i < 20; i++ {
		builder.WriteString("This sentence fills the chunk with enough characters. ")
	}

	chunks, err := chunker.ChunkDocument(builder.String())
	require.NoError(t, err)
	if len(chunks) < 2 {
		t.Fatalf("长文档应切分为多块, 实际 %d 块", len(chunks))
	}

	for i, chunk := range chunks {
		require.Equal(t, i, chunk.ChunkIndex)
		if len(chunk.Content) > 200 {
			t.Fatalf("分块 %d 过大: %d 字符", i, len(chunk.Content))
		}
	}
}

func TestChunker_OverlapCarriesTailText(t *testing.T) {
	chunker := NewChunker(60, 20)

	chunks, err := chunker.ChunkDocument(
		"First sentence about golang testing. Second sentence about vectors. Third sentence about caching.",
	)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// 相邻分块应共享重叠文本：上一块的末尾单词出现在下一块开头
	words := strings.Fields(chunks[0].Content)
	lastWord := words[len(words)-1]
	require.Contains(t, chunks[1].Content, lastWord)
}

func TestChunker_RejectsEmptyDocument(t *testing.T) {
	chunker := NewChunker(0, 0)

	_, err := chunker.ChunkDocument("   \n\t  ")
	require.Error(t, err)
}

func TestChunker_NormalizesWhitespace(t *testing.T) {
	chunker := NewChunker(500, 0)

	chunks, err := chunker.ChunkDocument("Multiple    spaces\n\nand newlines.   Collapse them.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.NotContains(t, chunks[0].Content, "  ")
	require.NotContains(t, chunks[0].Content, "\n")
}
