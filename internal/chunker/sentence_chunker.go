package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"patentrag/internal/domain"
)

const (
	// DefaultChunkSize is the default window length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the default number of characters shared by neighbouring windows.
	DefaultOverlap = 200
	// MinPassageLength is the trimmed length below which a window is treated as noise.
	MinPassageLength = 50

	maxSectionTitle = 100
)

// SentenceChunker splits page text into overlapping, size-bounded passages,
// preferring to end each window on a sentence terminator or newline.
type SentenceChunker struct {
	chunkSize int
	overlap   int
}

// NewSentenceChunker validates 0 <= overlap < chunkSize.
func NewSentenceChunker(chunkSize, overlap int) (*SentenceChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, overlap, chunkSize)
	}
	return &SentenceChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured window length.
func (c *SentenceChunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *SentenceChunker) Overlap() int { return c.overlap }

// Chunk turns one page into passages. Blank pages yield no passages; a page
// that is not valid UTF-8 is rejected so the caller can skip it.
func (c *SentenceChunker) Chunk(documentID string, pageNumber int, text string) ([]domain.Passage, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("page %d of %s: text is not valid UTF-8", pageNumber, documentID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var passages []domain.Passage
	for _, window := range c.Split(text) {
		trimmed := strings.TrimSpace(window)
		if utf8.RuneCountInString(trimmed) < MinPassageLength {
			continue
		}
		passages = append(passages, domain.Passage{
			ID:   uuid.NewString(),
			Text: trimmed,
			Metadata: domain.PassageMetadata{
				DocumentID:   documentID,
				PageNumber:   pageNumber,
				SectionTitle: sectionTitle(trimmed),
				Kind:         domain.PassageKindText,
			},
		})
	}
	return passages, nil
}

// Split returns the raw windows of text before trimming and noise filtering.
func (c *SentenceChunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n <= c.chunkSize {
		return []string{text}
	}
	var windows []string
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end < n {
			if bp := lastBreak(runes, start, end); bp > start {
				end = bp + 1
			}
		}
		// end stays unclamped so the overlap walk continues past the text end
		windows = append(windows, string(runes[start:min(end, n)]))
		next := end - c.overlap
		if next <= start {
			// a break close to start would stall the window
			next = end
		}
		start = next
	}
	return windows
}

// lastBreak returns the index of the rightmost '.' or '\n' in runes[start:end], or -1.
func lastBreak(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}

func sectionTitle(passage string) string {
	first, _, _ := strings.Cut(passage, "\n")
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) > maxSectionTitle {
		first = string([]rune(first)[:maxSectionTitle])
	}
	return first
}
