package domain

import "context"

// PassageKindText marks passages cut from extracted page text.
const PassageKindText = "text"

// PassageMetadata locates a passage inside its source document.
type PassageMetadata struct {
	DocumentID   string
	PageNumber   int // 1-based
	SectionTitle string
	Kind         string
}

// Passage is a bounded span of document text and the unit of retrieval.
// Passages are never mutated; corrections mean re-chunking under new IDs.
type Passage struct {
	ID       string
	Text     string
	Metadata PassageMetadata
}

// Vector is an L2-normalized embedding. The all-zero vector is the
// degenerate sentinel for inputs with no direction.
type Vector []float32

// IndexedEntry is the persisted unit of the similarity index.
type IndexedEntry struct {
	PassageID string
	Vector    Vector
	Text      string
	Metadata  PassageMetadata
}

// RetrievalResult is a passage matched by a query together with its score.
// Similarity may be negative for near-opposite vectors.
type RetrievalResult struct {
	PassageID  string
	Text       string
	Similarity float64
	Metadata   PassageMetadata
}

// RetrievalOutcome is the per-query summary handed to the context assembler.
// Results are ordered by descending similarity.
type RetrievalOutcome struct {
	Results             []RetrievalResult
	AggregateConfidence float64
	TotalFound          int
}

// EmptyOutcome is the "nothing found" variant: no results, zero confidence.
func EmptyOutcome() RetrievalOutcome {
	return RetrievalOutcome{}
}

// IsEmpty reports whether the outcome carries no results.
func (o RetrievalOutcome) IsEmpty() bool { return len(o.Results) == 0 }

// IngestReport summarizes one document ingestion.
type IngestReport struct {
	DocumentID      string
	PassagesAdded   int
	PassagesRemoved int // earlier passages dropped when replacing
	PagesEmpty      int
	PagesSkipped    int

	// Aborted is set when embedding or the index failed and nothing new was
	// persisted for the document. Reason carries a short cause.
	Aborted bool
	Reason  string
}

// Source is a cited passage as shown next to a generated answer.
type Source struct {
	PassageID string
	Snippet   string
	Percent   int
	Metadata  PassageMetadata
}

// Answer is the result of a full question answering round.
type Answer struct {
	Text       string
	Sources    []Source
	Confidence float64
	TotalFound int
}

// Extractor turns a source document into ordered per-page plain text.
// When only some pages fail, the pages are returned together with an error
// joining one *PageError per failed page; those pages are left empty.
type Extractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// Index stores indexed entries and answers nearest-neighbour queries.
// Implementations convert their native metric into a similarity score.
type Index interface {
	Ingest(ctx context.Context, entries []IndexedEntry) error
	// Query returns up to k entries in the index's native order. Results are
	// not threshold-filtered.
	Query(ctx context.Context, vector Vector, k int) ([]RetrievalResult, error)
	// GetByID returns found=false when the passage does not exist.
	GetByID(ctx context.Context, passageID string) (IndexedEntry, bool, error)
	Stats(ctx context.Context) (int, error)
	Close() error
}

// Pruner removes passages from an index. Replacing a document means deleting
// its passages and ingesting the new ones.
type Pruner interface {
	// DeleteDocument removes every passage of documentID and reports how many
	// were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	// Reset removes all passages and forgets the vector dimension.
	Reset(ctx context.Context) error
}

// Generator completes an assembled prompt into an answer.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
