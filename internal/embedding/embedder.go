package embedding

import "context"

// Embedder maps text to fixed-length vectors. Output dimensionality is fixed
// for the lifetime of the process.
type Embedder interface {
	Name() string
	Dimension() int
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
