package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"patentrag/internal/assembler"
	"patentrag/internal/chunker"
	"patentrag/internal/domain"
	"patentrag/internal/embedding"
	"patentrag/internal/metrics"
	"patentrag/internal/retriever"
)

// SnippetLength caps the source text shown next to an answer, in characters.
const SnippetLength = 500

var (
	// ErrNoGenerator is returned by Answer when no generator is configured.
	ErrNoGenerator = errors.New("no answer generator configured")

	// ErrPruneUnsupported is returned when the index cannot delete passages.
	ErrPruneUnsupported = errors.New("index does not support deleting passages")
)

// Options carries the pipeline defaults. ReplaceDocuments makes IngestFile
// replace earlier passages of the same document instead of adding to them.
type Options struct {
	ChunkSize        int
	Overlap          int
	Threshold        float64
	MaxResults       int
	ReplaceDocuments bool
}

// IngestRequest is one document's extracted pages. Zero ChunkSize and Overlap
// fall back to the service defaults. FailedPages holds extraction errors keyed
// by 1-based page number; those pages are skipped. Replace removes the
// document's earlier passages once the new ones are embedded.
type IngestRequest struct {
	DocumentID  string
	Pages       []string
	FailedPages map[int]error
	ChunkSize   int
	Overlap     int
	Replace     bool
}

// IngestFailure records a document that could not be ingested.
type IngestFailure struct {
	Path string
	Err  error
}

// IngestSummary is the result of ingesting a set of paths.
type IngestSummary struct {
	Reports  []domain.IngestReport
	Failures []IngestFailure
}

// PassagesAdded totals the passages written across all documents.
func (s IngestSummary) PassagesAdded() int {
	n := 0
	for _, r := range s.Reports {
		n += r.PassagesAdded
	}
	return n
}

// Stats describes the current index.
type Stats struct {
	Passages  int
	Embedder  string
	Dimension int
}

// RAGService runs ingestion, retrieval and answering over one index.
type RAGService struct {
	extractor  domain.Extractor
	vectorizer *embedding.Vectorizer
	index      domain.Index
	retriever  *retriever.Retriever
	generator  domain.Generator
	logger     *zap.Logger
	metrics    *metrics.Metrics
	opts       Options
}

// NewRAGService wires the pipeline. generator may be nil, in which case only
// retrieval and prompt building are available.
func NewRAGService(extractor domain.Extractor, vectorizer *embedding.Vectorizer, index domain.Index, generator domain.Generator, logger *zap.Logger, m *metrics.Metrics, opts Options) *RAGService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
		if opts.Overlap == 0 {
			opts.Overlap = chunker.DefaultOverlap
		}
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 10
	}
	return &RAGService{
		extractor:  extractor,
		vectorizer: vectorizer,
		index:      index,
		retriever:  retriever.New(vectorizer, index, logger, m),
		generator:  generator,
		logger:     logger,
		metrics:    m,
		opts:       opts,
	}
}

// Threshold returns the default similarity threshold.
func (s *RAGService) Threshold() float64 { return s.opts.Threshold }

// MaxResults returns the default result cap.
func (s *RAGService) MaxResults() int { return s.opts.MaxResults }

// CanAnswer reports whether a generator is configured.
func (s *RAGService) CanAnswer() bool { return s.generator != nil }

// IngestDocument chunks, embeds and indexes one document. Pages that failed
// extraction or cannot be chunked are skipped. All passages of the document
// are embedded and written as one batch, so an embedding or index failure
// persists nothing; it is reported rather than returned, except for a
// corrupted index.
func (s *RAGService) IngestDocument(ctx context.Context, req IngestRequest) (domain.IngestReport, error) {
	report := domain.IngestReport{DocumentID: req.DocumentID}
	if strings.TrimSpace(req.DocumentID) == "" {
		return report, fmt.Errorf("%w: document id is empty", domain.ErrInvalidArgument)
	}
	size, overlap := req.ChunkSize, req.Overlap
	if size == 0 {
		size, overlap = s.opts.ChunkSize, s.opts.Overlap
		if req.Overlap != 0 {
			overlap = req.Overlap
		}
	}
	ch, err := chunker.NewSentenceChunker(size, overlap)
	if err != nil {
		return report, err
	}

	log := s.logger.With(zap.String("document", req.DocumentID))
	var passages []domain.Passage
	for i, page := range req.Pages {
		if perr, failed := req.FailedPages[i+1]; failed {
			log.Warn("skipping page: extraction failed", zap.Int("page", i+1), zap.Error(perr))
			report.PagesSkipped++
			continue
		}
		if strings.TrimSpace(page) == "" {
			report.PagesEmpty++
			continue
		}
		ps, err := ch.Chunk(req.DocumentID, i+1, page)
		if err != nil {
			log.Warn("skipping page", zap.Int("page", i+1), zap.Error(err))
			report.PagesSkipped++
			continue
		}
		passages = append(passages, ps...)
	}
	s.metrics.AddPagesSkipped(report.PagesSkipped)
	if len(passages) == 0 {
		log.Info("document produced no passages", zap.Int("pages", len(req.Pages)))
		if req.Replace {
			return s.removePrevious(ctx, log, report)
		}
		return report, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors := s.vectorizer.VectorizeBatch(ctx, texts)
	if vectors == nil {
		report.Aborted, report.Reason = true, "embedding failed"
		s.metrics.DocumentFailed()
		log.Error("ingestion aborted: embedding failed", zap.Int("passages", len(passages)))
		return report, nil
	}

	if req.Replace {
		if report, err = s.removePrevious(ctx, log, report); err != nil || report.Aborted {
			return report, err
		}
	}

	entries := make([]domain.IndexedEntry, len(passages))
	for i, p := range passages {
		entries[i] = domain.IndexedEntry{PassageID: p.ID, Vector: vectors[i], Text: p.Text, Metadata: p.Metadata}
	}
	if err := s.index.Ingest(ctx, entries); err != nil {
		s.metrics.DocumentFailed()
		if errors.Is(err, domain.ErrIndexCorrupted) {
			return report, fmt.Errorf("ingesting %s: %w", req.DocumentID, err)
		}
		report.Aborted, report.Reason = true, "index write failed"
		log.Error("ingestion aborted: index write failed", zap.Error(err))
		return report, nil
	}

	report.PassagesAdded = len(entries)
	s.metrics.AddPassagesIngested(report.PassagesAdded)
	log.Info("document indexed",
		zap.Int("passages", report.PassagesAdded),
		zap.Int("pages", len(req.Pages)),
		zap.Int("pages_empty", report.PagesEmpty),
		zap.Int("pages_skipped", report.PagesSkipped))
	return report, nil
}

// removePrevious deletes the passages already indexed for the report's
// document. A failure aborts the document like an index write failure.
func (s *RAGService) removePrevious(ctx context.Context, log *zap.Logger, report domain.IngestReport) (domain.IngestReport, error) {
	n, err := s.DeleteDocument(ctx, report.DocumentID)
	if err != nil {
		s.metrics.DocumentFailed()
		if errors.Is(err, domain.ErrIndexCorrupted) {
			return report, fmt.Errorf("replacing %s: %w", report.DocumentID, err)
		}
		report.Aborted, report.Reason = true, "removing previous passages failed"
		log.Error("ingestion aborted: removing previous passages failed", zap.Error(err))
		return report, nil
	}
	report.PassagesRemoved = n
	if n > 0 {
		log.Info("removed previous passages", zap.Int("passages", n))
	}
	return report, nil
}

// DeleteDocument removes every passage indexed under documentID.
func (s *RAGService) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	p, ok := s.index.(domain.Pruner)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	return p.DeleteDocument(ctx, documentID)
}

// Reset empties the index.
func (s *RAGService) Reset(ctx context.Context) error {
	p, ok := s.index.(domain.Pruner)
	if !ok {
		return ErrPruneUnsupported
	}
	if err := p.Reset(ctx); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	s.logger.Info("index reset")
	return nil
}

// IngestFile extracts the file at path and ingests it under its base name.
func (s *RAGService) IngestFile(ctx context.Context, path string) (domain.IngestReport, error) {
	docID := filepath.Base(path)
	pages, err := s.extractor.ExtractPages(ctx, path)
	failed := domain.FailedPages(err)
	if err != nil && (failed == nil || pages == nil) {
		s.metrics.DocumentFailed()
		return domain.IngestReport{DocumentID: docID}, fmt.Errorf("extracting %s: %w", docID, err)
	}
	return s.IngestDocument(ctx, IngestRequest{
		DocumentID:  docID,
		Pages:       pages,
		FailedPages: failed,
		Replace:     s.opts.ReplaceDocuments,
	})
}

type supporter interface {
	Supports(path string) bool
}

// IngestPaths ingests every file matched by the given paths, glob patterns or
// directories. A failing document is recorded and the rest continue.
func (s *RAGService) IngestPaths(ctx context.Context, patterns []string) (IngestSummary, error) {
	files, err := s.expand(patterns)
	if err != nil {
		return IngestSummary{}, err
	}
	if len(files) == 0 {
		return IngestSummary{}, fmt.Errorf("no documents found")
	}

	var summary IngestSummary
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := s.IngestFile(ctx, f)
		if err != nil {
			if errors.Is(err, domain.ErrIndexCorrupted) {
				return summary, err
			}
			s.logger.Warn("document skipped", zap.String("path", f), zap.Error(err))
			summary.Failures = append(summary.Failures, IngestFailure{Path: f, Err: err})
			continue
		}
		summary.Reports = append(summary.Reports, report)
	}
	return summary, nil
}

func (s *RAGService) expand(patterns []string) ([]string, error) {
	sup, _ := s.extractor.(supporter)
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		if matches == nil {
			matches = []string{pattern}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", m, err)
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			err = filepath.WalkDir(m, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || (sup != nil && !sup.Supports(p)) {
					return nil
				}
				add(p)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walking %s: %w", m, err)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Retrieve returns the passages relevant to query.
func (s *RAGService) Retrieve(ctx context.Context, query string, threshold float64, maxResults int) (domain.RetrievalOutcome, error) {
	return s.retriever.Retrieve(ctx, query, threshold, maxResults)
}

// BuildPrompt assembles the generator prompt; see assembler.BuildPrompt.
func (s *RAGService) BuildPrompt(query string, outcome domain.RetrievalOutcome) (string, bool) {
	return assembler.BuildPrompt(query, outcome)
}

// Answer retrieves evidence for query and asks the generator for an answer.
// The generator is not called when nothing relevant was found.
func (s *RAGService) Answer(ctx context.Context, query string, threshold float64) (domain.Answer, error) {
	outcome, err := s.Retrieve(ctx, query, threshold, s.opts.MaxResults)
	if err != nil {
		return domain.Answer{}, err
	}
	prompt, ok := s.BuildPrompt(query, outcome)
	if !ok {
		return domain.Answer{Text: prompt}, nil
	}
	if s.generator == nil {
		return domain.Answer{}, ErrNoGenerator
	}
	text, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]domain.Source, len(outcome.Results))
	for i, r := range outcome.Results {
		sources[i] = domain.Source{
			PassageID: r.PassageID,
			Snippet:   Snippet(r.Text, SnippetLength),
			Percent:   int(math.Round(r.Similarity * 100)),
			Metadata:  r.Metadata,
		}
	}
	return domain.Answer{
		Text:       text,
		Sources:    sources,
		Confidence: outcome.AggregateConfidence,
		TotalFound: outcome.TotalFound,
	}, nil
}

// Passage looks up a stored passage by id.
func (s *RAGService) Passage(ctx context.Context, id string) (domain.IndexedEntry, bool, error) {
	return s.index.GetByID(ctx, id)
}

// Stats reports the index size and the embedder in use.
func (s *RAGService) Stats(ctx context.Context) (Stats, error) {
	n, err := s.index.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("reading index stats: %w", err)
	}
	return Stats{Passages: n, Embedder: s.vectorizer.ModelName(), Dimension: s.vectorizer.Dimension()}, nil
}

// Snippet shortens text to at most limit characters, marking the cut with "...".
func Snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
