package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"patentrag/internal/domain"
	"patentrag/internal/metrics"
)

// QueryVectorizer turns a question into a unit vector.
type QueryVectorizer interface {
	VectorizeQuery(ctx context.Context, text string) (domain.Vector, bool)
}

// Retriever selects the passages relevant to a query: it embeds the query,
// asks the index for candidates and keeps those at or above the threshold.
type Retriever struct {
	vectorizer QueryVectorizer
	index      domain.Index
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New returns a Retriever over index. A nil logger discards logs and nil
// metrics record nothing.
func New(vectorizer QueryVectorizer, index domain.Index, logger *zap.Logger, m *metrics.Metrics) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{vectorizer: vectorizer, index: index, logger: logger, metrics: m}
}

// Retrieve returns the matching passages ordered by descending similarity.
// Embedding and index failures degrade to an empty outcome; only a corrupted
// index is reported as an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, threshold float64, maxResults int) (domain.RetrievalOutcome, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return domain.EmptyOutcome(), fmt.Errorf("%w: threshold %v outside [0, 1]", domain.ErrInvalidArgument, threshold)
	}
	if maxResults <= 0 {
		return domain.EmptyOutcome(), fmt.Errorf("%w: max results must be positive, got %d", domain.ErrInvalidArgument, maxResults)
	}

	start := time.Now()
	vec, ok := r.vectorizer.VectorizeQuery(ctx, query)
	if !ok {
		r.logger.Warn("query could not be embedded; returning no results")
		r.metrics.ObserveRetrieval(metrics.OutcomeError, time.Since(start))
		return domain.EmptyOutcome(), nil
	}

	candidates, err := r.index.Query(ctx, vec, maxResults)
	if err != nil {
		r.metrics.ObserveRetrieval(metrics.OutcomeError, time.Since(start))
		if errors.Is(err, domain.ErrIndexCorrupted) {
			return domain.EmptyOutcome(), fmt.Errorf("querying index: %w", err)
		}
		r.logger.Error("index query failed", zap.Error(err))
		return domain.EmptyOutcome(), nil
	}

	outcome := Select(candidates, threshold)
	label := metrics.OutcomeHit
	if outcome.IsEmpty() {
		label = metrics.OutcomeEmpty
	}
	r.metrics.ObserveRetrieval(label, time.Since(start))
	r.logger.Debug("retrieval finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", outcome.TotalFound),
		zap.Float64("threshold", threshold),
		zap.Float64("confidence", outcome.AggregateConfidence))
	return outcome, nil
}

// Select keeps candidates with similarity >= threshold, sorts them by
// descending similarity (ties keep index order) and computes the aggregate
// confidence.
func Select(candidates []domain.RetrievalResult, threshold float64) domain.RetrievalOutcome {
	kept := make([]domain.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return domain.EmptyOutcome()
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })

	var sum float64
	for _, k := range kept {
		sum += k.Similarity
	}
	return domain.RetrievalOutcome{
		Results:             kept,
		AggregateConfidence: round2(sum / float64(len(kept))),
		TotalFound:          len(kept),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
