//go:build !cgo

package embed

import "context"

// LocalModelsAvailable reports whether this build can run local models.
const LocalModelsAvailable = false

// LocalEmbedder is unavailable without cgo.
type LocalEmbedder struct{}

// NewLocalEmbedder always fails without cgo.
func NewLocalEmbedder(_ context.Context, _ LocalConfig) (*LocalEmbedder, error) {
	return nil, ErrLocalModelUnavailable
}

func (e *LocalEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrLocalModelUnavailable
}

func (e *LocalEmbedder) Dimensions() int   { return 0 }
func (e *LocalEmbedder) ModelName() string { return "" }
func (e *LocalEmbedder) Close() error      { return nil }
