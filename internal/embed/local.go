//go:build cgo

package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// LocalModelsAvailable reports whether this build can run local models.
const LocalModelsAvailable = true

// Loaded models are shared by every LocalEmbedder in the process.
var (
	localMu    sync.Mutex
	localCache = map[string]*fastembed.FlagEmbedding{}
)

// LocalEmbedder runs an ONNX model in process through fastembed.
type LocalEmbedder struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	name      string
	dims      int
	batchSize int
	closed    bool
}

// NewLocalEmbedder loads cfg.Model, downloading it into cfg.CacheDir on
// first use. A model is loaded at most once per process.
func NewLocalEmbedder(ctx context.Context, cfg LocalConfig) (*LocalEmbedder, error) {
	m, ok := localModels[cfg.Model]
	if !ok {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingModel,
			fmt.Sprintf("unsupported local embedding model %q", cfg.Model), nil).
			WithSuggestion("Use BAAI/bge-small-en-v1.5 or set VECTOR_EMBEDDING_BASE_URL for a remote model")
	}
	if cfg.CacheDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		cfg.CacheDir = filepath.Join(cacheDir, "grampsindex", "models")
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	model, err := loadLocalModel(ctx, m.name, cfg)
	if err != nil {
		return nil, err
	}
	return &LocalEmbedder{model: model, name: cfg.Model, dims: m.dims, batchSize: cfg.BatchSize}, nil
}

func loadLocalModel(ctx context.Context, name string, cfg LocalConfig) (*fastembed.FlagEmbedding, error) {
	localMu.Lock()
	defer localMu.Unlock()
	if model, ok := localCache[name]; ok {
		return model, nil
	}

	// Other processes may be downloading the same model.
	lock := NewFileLock(cfg.CacheDir)
	if err := lock.Lock(); err != nil {
		return nil, gerrors.IOError("lock model cache", err)
	}
	defer func() { _ = lock.Unlock() }()

	showProgress := false
	opts := &fastembed.InitOptions{
		Model:                fastembed.EmbeddingModel(name),
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	}

	var model *fastembed.FlagEmbedding
	err := DownloadWithRetry(ctx, DefaultRetryConfig(), func() error {
		var err error
		model, err = fastembed.NewFlagEmbedding(opts)
		return err
	})
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeModelDownload, "load local embedding model "+name, err)
	}
	slog.Info("embedding_model_loaded", slog.String("model", name), slog.String("cache_dir", cfg.CacheDir))
	localCache[name] = model
	return model, nil
}

// Embed embeds texts with the shared model.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "local embedder", errClosed)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vecs, err := e.model.Embed(texts, e.batchSize)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed, "local embedding failed", err)
	}
	if len(vecs) != len(texts) {
		return nil, gerrors.New(gerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("local model returned %d vectors for %d texts", len(vecs), len(texts)), nil)
	}
	return vecs, nil
}

// Dimensions returns the vector size.
func (e *LocalEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model name.
func (e *LocalEmbedder) ModelName() string { return e.name }

// Close detaches the embedder. The model stays loaded for the process.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
