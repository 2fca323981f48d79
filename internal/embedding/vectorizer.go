package embedding

import (
	"context"
	"math"

	"go.uber.org/zap"

	"patentrag/internal/domain"
)

// Vectorizer wraps an Embedder and guarantees unit-norm output. Embedding
// failures degrade to an empty result instead of an error.
type Vectorizer struct {
	embedder Embedder
	logger   *zap.Logger
	onError  func()
}

// NewVectorizer builds a Vectorizer. onError, when non-nil, is invoked once per
// failed embedding call.
func NewVectorizer(embedder Embedder, logger *zap.Logger, onError func()) *Vectorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vectorizer{embedder: embedder, logger: logger, onError: onError}
}

// Dimension reports the embedder's output size.
func (v *Vectorizer) Dimension() int { return v.embedder.Dimension() }

// ModelName identifies the wrapped embedder.
func (v *Vectorizer) ModelName() string { return v.embedder.Name() }

// VectorizeBatch embeds texts in order. It returns nil when the embedder fails,
// returns nothing, or returns a different number of vectors than texts.
func (v *Vectorizer) VectorizeBatch(ctx context.Context, texts []string) []domain.Vector {
	if len(texts) == 0 {
		return nil
	}
	raw, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		v.fail("embedding failed", zap.Error(err), zap.Int("texts", len(texts)))
		return nil
	}
	if len(raw) != len(texts) {
		v.fail("embedder returned unexpected vector count", zap.Int("texts", len(texts)), zap.Int("vectors", len(raw)))
		return nil
	}
	out := make([]domain.Vector, len(raw))
	for i, vec := range raw {
		if len(vec) == 0 {
			v.fail("embedder returned an empty vector", zap.Int("position", i))
			return nil
		}
		out[i] = Normalize(vec)
	}
	return out
}

// VectorizeQuery embeds a single text; ok is false when no vector was produced.
func (v *Vectorizer) VectorizeQuery(ctx context.Context, text string) (domain.Vector, bool) {
	vecs := v.VectorizeBatch(ctx, []string{text})
	if len(vecs) == 0 {
		return nil, false
	}
	return vecs[0], true
}

func (v *Vectorizer) fail(msg string, fields ...zap.Field) {
	v.logger.Warn(msg, append(fields, zap.String("embedder", v.embedder.Name()))...)
	if v.onError != nil {
		v.onError()
	}
}

// Normalize returns a unit-length copy of vec. A zero-norm input yields the
// zero vector, whose similarity with any vector is 0.
func Normalize(vec []float32) domain.Vector {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	out := make(domain.Vector, len(vec))
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range vec {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Norm returns the L2 norm of vec.
func Norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Similarity is the dot product of two unit vectors, i.e. their cosine
// similarity. Vectors of different length score 0.
func Similarity(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
