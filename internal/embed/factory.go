package embed

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Config selects and configures an embedder. It mirrors the
// VECTOR_EMBEDDING_* settings.
type Config struct {
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheDir   string
}

// New builds the embedder for cfg:
//   - empty model: ErrSemanticDisabled
//   - model "static": StaticEmbedder
//   - BaseURL set: RemoteEmbedder
//   - otherwise: LocalEmbedder
func New(ctx context.Context, cfg Config) (Embedder, error) {
	model := strings.TrimSpace(cfg.Model)
	switch {
	case model == "":
		return nil, ErrSemanticDisabled
	case model == StaticModelName:
		return NewStaticEmbedder(), nil
	case strings.TrimSpace(cfg.BaseURL) != "":
		e, err := NewRemoteEmbedder(ctx, RemoteConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("embedder_selected", slog.String("provider", "remote"), slog.String("model", model), slog.Int("dimensions", e.Dimensions()))
		return e, nil
	default:
		e, err := NewLocalEmbedder(ctx, LocalConfig{Model: model, CacheDir: cfg.CacheDir, BatchSize: cfg.BatchSize})
		if err != nil {
			return nil, err
		}
		slog.Info("embedder_selected", slog.String("provider", "local"), slog.String("model", model), slog.Int("dimensions", e.Dimensions()))
		return e, nil
	}
}
