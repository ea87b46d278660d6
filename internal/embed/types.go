// Package embed turns document and query texts into dense vectors for
// the semantic collections.
package embed

import (
	"context"
	"errors"
	"math"
	"time"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

const (
	// DefaultBatchSize is how many texts go into one provider request.
	DefaultBatchSize = 32

	// MaxBatchSize caps provider requests.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single remote request.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the vector size of StaticEmbedder.
	StaticDimensions = 256

	// StaticModelName is reported by StaticEmbedder and selects it in New.
	StaticModelName = "static"
)

var (
	// ErrSemanticDisabled is returned by New when no embedding model is
	// configured. Callers build keyword collections only.
	ErrSemanticDisabled = gerrors.New(gerrors.ErrCodeSemanticDisabled,
		"semantic search is disabled: no embedding model configured", nil).
		WithSuggestion("Set VECTOR_EMBEDDING_MODEL to enable semantic search")

	// ErrLocalModelUnavailable is returned when a local model is requested
	// from a binary built without cgo.
	ErrLocalModelUnavailable = gerrors.New(gerrors.ErrCodeEmbeddingModel,
		"local embedding models need a cgo build", nil).
		WithSuggestion("Set VECTOR_EMBEDDING_BASE_URL to use a remote embedding service")

	errClosed = errors.New("embedder is closed")
)

// Embedder generates embeddings. Output i always belongs to input i and
// every vector has Dimensions() entries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size.
	Dimensions() int

	// ModelName identifies the model; vectors from different models are
	// never mixed in one collection.
	ModelName() string

	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
