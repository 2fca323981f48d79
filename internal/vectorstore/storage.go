package vectorstore

import (
	"strings"

	"patentrag/internal/domain"
)

// Storage persists indexed entries, supports similarity search and can drop
// passages.
type Storage interface {
	domain.Index
	domain.Pruner
}

// Metric names the raw score an index reports for a match.
type Metric string

const (
	// CosineDistance is 1 - cos, in [0, 2].
	CosineDistance Metric = "cosine_distance"
	// Cosine is the cosine similarity itself.
	Cosine Metric = "cosine"
	// Dot is the inner product, equal to cosine for unit vectors.
	Dot Metric = "dot"
	// Euclidean is the L2 distance between vectors.
	Euclidean Metric = "euclid"
)

// Similarity converts a raw score in the given metric into cosine similarity
// for unit vectors. Negative similarities are preserved.
func Similarity(m Metric, raw float64) float64 {
	switch m {
	case CosineDistance:
		return 1 - raw
	case Euclidean:
		// |a-b|^2 = 2 - 2cos for unit vectors
		return 1 - raw*raw/2
	default:
		return raw
	}
}

// ParseMetric maps user-facing names ("cosine", "dot", "euclid", "l2", ...) to a Metric.
func ParseMetric(value string) Metric {
	switch strings.ToLower(value) {
	case "dot", "dotproduct":
		return Dot
	case "euclid", "euclidean", "l2":
		return Euclidean
	case "cosine_distance":
		return CosineDistance
	default:
		return Cosine
	}
}
