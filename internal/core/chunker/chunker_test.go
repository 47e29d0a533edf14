package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
)

func onePage(text string) []models.PageText {
	return []models.PageText{{Page: 1, Text: text}}
}

func TestNew_RejectsBadOverlap(t *testing.T) {
	_, err := New(100, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = New(100, 150)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = New(0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestChunk_ShortDocumentSingleChunk(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk("doc-1", "tenant-a", onePage("a short document"))
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, len("a short document"), chunks[0].CharEnd)
}

func TestChunk_EmptyTextYieldsNothing(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)
	assert.Empty(t, c.Chunk("doc-1", "tenant-a", nil))
	assert.Empty(t, c.Chunk("doc-1", "tenant-a", onePage("")))
}

func TestChunk_RespectsSizeBudget(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("many words strung together without any stop ", 20)
	chunks := c.Chunk("doc-1", "tenant-a", onePage(text))
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 50, "chunk %d over budget", ch.SequenceIndex)
	}
}

func TestChunk_PrefersParagraphBreaks(t *testing.T) {
	c, err := New(60, 0)
	require.NoError(t, err)

	para1 := strings.Repeat("x", 40)
	para2 := strings.Repeat("y", 40)
	chunks := c.Chunk("doc-1", "tenant-a", onePage(para1+"\n\n"+para2))
	require.GreaterOrEqual(t, len(chunks), 2)
	// First chunk should end at the paragraph break, not mid-paragraph.
	assert.Equal(t, para1+"\n\n", chunks[0].Text)
}

func TestChunk_OverlapSharedBetweenNeighbors(t *testing.T) {
	c, err := New(40, 10)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 20)
	chunks := c.Chunk("doc-1", "tenant-a", onePage(text))
	require.GreaterOrEqual(t, len(chunks), 2)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Equal(t, prev.CharEnd-10, cur.CharStart)
		tail := string([]rune(prev.Text)[len([]rune(prev.Text))-10:])
		head := string([]rune(cur.Text)[:10])
		assert.Equal(t, tail, head)
	}
}

func TestChunk_CoverageReconstructsText(t *testing.T) {
	c, err := New(80, 20)
	require.NoError(t, err)

	text := "First paragraph of the report.\n\nSecond paragraph has more detail. " +
		"It continues with multiple sentences. Then it keeps going for a while longer " +
		"so the splitter has real work to do.\n\nFinal short paragraph."
	chunks := c.Chunk("doc-1", "tenant-a", onePage(text))
	require.NotEmpty(t, chunks)

	var b strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		skip := chunks[i-1].CharEnd - ch.CharStart
		b.WriteString(string(runes[skip:]))
	}
	assert.Equal(t, text, b.String())
}

func TestChunk_SequenceIndexesMonotonic(t *testing.T) {
	c, err := New(30, 5)
	require.NoError(t, err)

	chunks := c.Chunk("doc-1", "tenant-a", onePage(strings.Repeat("word and more ", 30)))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
		assert.Equal(t, "doc-1", ch.DocumentID)
		assert.Equal(t, "tenant-a", ch.TenantID)
	}
}

func TestChunk_PageSpansTracked(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	pages := []models.PageText{
		{Page: 1, Text: strings.Repeat("page one text. ", 40)},
		{Page: 2, Text: strings.Repeat("page two text. ", 40)},
	}
	chunks := c.Chunk("doc-1", "tenant-a", pages)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Contains(t, []int{1, 2}, ch.PageStart)
		assert.Contains(t, []int{1, 2}, ch.PageEnd)
		assert.LessOrEqual(t, ch.PageStart, ch.PageEnd)
	}
	// The joined text spans both pages, so the last chunk must end on page 2.
	assert.Equal(t, 2, chunks[len(chunks)-1].PageEnd)
}

func TestChunk_MultibyteTextMeasuredInRunes(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("日本語テキスト ", 10)
	chunks := c.Chunk("doc-1", "tenant-a", onePage(text))
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 10)
	}
}
