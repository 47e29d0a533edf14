package chunker

import (
	"fmt"
	"strings"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
)

// separators tried in order when looking for a chunk boundary: paragraph
// break, line break, sentence end, word break. A hard character cut is the
// last resort.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits page-annotated text into overlapping character-budgeted
// chunks. Chunk texts are verbatim slices of the joined page text, so
// concatenating chunks with the overlap regions removed reconstructs the
// extracted text exactly.
type Chunker struct {
	chunkSize int // rune budget per chunk
	overlap   int // runes shared between consecutive chunks
}

func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)", core.ErrInvalidConfiguration, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// pageSpan maps a rune range of the joined text back to its page number.
type pageSpan struct {
	start, end int // [start, end) in runes
	page       int
}

// Chunk splits the document's pages into chunks. A document shorter than the
// chunk size yields exactly one chunk. Returned sequence indexes are
// monotonically increasing from zero.
func (c *Chunker) Chunk(docID, tenantID string, pages []models.PageText) []models.Chunk {
	text, spans := joinPages(pages)
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.Chunk
	pos := 0
	seq := 0
	for pos < len(runes) {
		end := pos + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.breakPoint(runes, pos, end)
		}

		chunks = append(chunks, models.Chunk{
			DocumentID:    docID,
			TenantID:      tenantID,
			SequenceIndex: seq,
			Text:          string(runes[pos:end]),
			PageStart:     pageAt(spans, pos),
			PageEnd:       pageAt(spans, end-1),
			CharStart:     pos,
			CharEnd:       end,
		})
		seq++

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return chunks
}

// breakPoint picks the cut position inside (pos, limit], preferring the
// latest separator occurrence. Separator candidates in the first half of the
// window are rejected to keep chunks from degenerating; a hard cut at the
// budget applies when no separator qualifies.
func (c *Chunker) breakPoint(runes []rune, pos, limit int) int {
	window := string(runes[pos:limit])
	minEnd := (limit - pos) / 2
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := len([]rune(window[:idx])) + len([]rune(sep))
		if end > minEnd {
			return pos + end
		}
	}
	return limit
}

// joinPages concatenates pages with a newline between them and records the
// rune span each page occupies in the joined text.
func joinPages(pages []models.PageText) (string, []pageSpan) {
	var b strings.Builder
	var spans []pageSpan
	offset := 0
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
			offset++
		}
		n := len([]rune(p.Text))
		spans = append(spans, pageSpan{start: offset, end: offset + n, page: p.Page})
		b.WriteString(p.Text)
		offset += n
	}
	return b.String(), spans
}

func pageAt(spans []pageSpan, runeIdx int) int {
	for _, s := range spans {
		if runeIdx < s.end {
			return s.page
		}
	}
	if len(spans) > 0 {
		return spans[len(spans)-1].page
	}
	return 0
}
