package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"

	"github.com/gramps-project/grampsindex/internal/config"
	"github.com/gramps-project/grampsindex/internal/embed"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/index"
)

// env bundles what the index commands share: the configuration, the
// embedder and the registry of open indexers.
type env struct {
	cfg      *config.Config
	embedder embed.Embedder
	// embedderErr is set when a model is configured but failed to load.
	// The registry then serves keyword indexers only.
	embedderErr error
	registry    *index.Registry
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func openEnv(ctx context.Context, cfg *config.Config) *env {
	e := &env{cfg: cfg}
	emb, err := embed.New(ctx, embed.Config{
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		Timeout:    cfg.Embeddings.Timeout,
		CacheDir:   cfg.Embeddings.CacheDir,
	})
	switch {
	case errors.Is(err, embed.ErrSemanticDisabled):
		slog.Debug("semantic_search_disabled")
	case err != nil:
		slog.Warn("embedder_unavailable",
			slog.String("model", cfg.Embeddings.Model),
			slog.String("error", err.Error()))
		e.embedderErr = err
	default:
		e.embedder = emb
	}

	e.registry = index.NewRegistry(index.RegistryConfig{
		OpenerFor: openerFor(cfg),
		IndexURI:  cfg.Index.URI,
		Embedder:  e.embedder,
		Dates:     gramps.ISOFormatter{},
	})
	return e
}

// requireEmbedder fails when a configured model could not be loaded, so
// writes never leave the semantic collections behind silently.
func (e *env) requireEmbedder() error {
	return e.embedderErr
}

func (e *env) embedderInfo() (model string, dims int) {
	if e.embedder == nil {
		return "", 0
	}
	return e.embedder.ModelName(), e.embedder.Dimensions()
}

func (e *env) Close() error {
	var result *multierror.Error
	if err := e.registry.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close embedder: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// openerFor resolves the Gramps database of a tree. A missing file is
// reported before any collection is touched.
func openerFor(cfg *config.Config) func(tree string) (gramps.Opener, error) {
	return func(tree string) (gramps.Opener, error) {
		path := cfg.DatabasePath(tree)
		if _, err := os.Stat(path); err != nil {
			return nil, gerrors.New(gerrors.ErrCodeDatabaseRead, "gramps database not found: "+path, err).
				WithDetail("tree", tree).
				WithSuggestion("Set database.path or database.trees in " + config.FileName)
		}
		return gramps.NewSQLiteOpener(path), nil
	}
}

// resolveTrees returns the trees named by flag, or every configured tree.
func resolveTrees(cfg *config.Config, flagTrees []string) ([]string, error) {
	trees := flagTrees
	if len(trees) == 0 {
		trees = cfg.Trees()
	}
	if len(trees) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeInvalidTree, "no tree given", nil).
			WithSuggestion("Pass --tree or list trees under database.trees in " + config.FileName)
	}
	for _, t := range trees {
		if err := index.ValidateTree(t); err != nil {
			return nil, err
		}
	}
	return trees, nil
}

// singleTree is resolveTrees for commands that work on one tree.
func singleTree(cfg *config.Config, tree string) (string, error) {
	var flagTrees []string
	if tree != "" {
		flagTrees = []string{tree}
	}
	trees, err := resolveTrees(cfg, flagTrees)
	if err != nil {
		return "", err
	}
	if len(trees) > 1 {
		return "", gerrors.New(gerrors.ErrCodeInvalidTree, fmt.Sprintf("%d trees configured", len(trees)), nil).
			WithSuggestion("Pass --tree to pick one")
	}
	return trees[0], nil
}

// lockTree takes the per-tree write lock without waiting. Two writers
// on one tree would interleave deletes and upserts.
func lockTree(cfg *config.Config, tree string) (*flock.Flock, error) {
	dir := cfg.LockDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, gerrors.IOError("create lock directory "+dir, err)
	}
	fl := flock.New(filepath.Join(dir, tree+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, gerrors.IOError("lock tree "+tree, err)
	}
	if !ok {
		return nil, gerrors.New(gerrors.ErrCodeIndexLocked, "index of tree "+tree+" is being written by another process", nil).
			WithDetail("lock", fl.Path()).
			WithSuggestion("Wait for the running reindex or watch to finish")
	}
	return fl, nil
}
