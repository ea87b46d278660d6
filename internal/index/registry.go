package index

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/embed"
	"github.com/gramps-project/grampsindex/internal/gramps"
)

// RegistryConfig is shared by every indexer of a Registry.
type RegistryConfig struct {
	// OpenerFor returns the database of a tree.
	OpenerFor func(tree string) (gramps.Opener, error)
	IndexURI  string
	// Embedder enables semantic indexers; nil disables them.
	Embedder embed.Embedder
	Dates    gramps.DateFormatter
}

type registryKey struct {
	tree string
	kind docstore.Kind
}

// Registry opens indexers on first use and keeps them until Close.
type Registry struct {
	mu       sync.Mutex
	cfg      RegistryConfig
	indexers map[registryKey]*Indexer
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{cfg: cfg, indexers: make(map[registryKey]*Indexer)}
}

// SemanticEnabled reports whether semantic indexers can be opened.
func (r *Registry) SemanticEnabled() bool { return r.cfg.Embedder != nil }

// Get returns the indexer of tree and kind, opening it if needed.
func (r *Registry) Get(tree string, kind docstore.Kind) (*Indexer, error) {
	if err := ValidateTree(tree); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = docstore.KindKeyword
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{tree: tree, kind: kind}
	if ix, ok := r.indexers[key]; ok {
		return ix, nil
	}
	if r.cfg.OpenerFor == nil {
		return nil, fmt.Errorf("registry has no database for tree %q", tree)
	}
	opener, err := r.cfg.OpenerFor(tree)
	if err != nil {
		return nil, err
	}
	ix, err := New(Config{
		Tree:     tree,
		Kind:     kind,
		Opener:   opener,
		IndexURI: r.cfg.IndexURI,
		Embedder: r.cfg.Embedder,
		Dates:    r.cfg.Dates,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("indexer_created", slog.String("tree", tree), slog.String("flavour", string(kind)))
	r.indexers[key] = ix
	return ix, nil
}

// Keyword returns the keyword indexer of tree.
func (r *Registry) Keyword(tree string) (*Indexer, error) {
	return r.Get(tree, docstore.KindKeyword)
}

// Semantic returns the semantic indexer of tree, or
// embed.ErrSemanticDisabled without an embedder.
func (r *Registry) Semantic(tree string) (*Indexer, error) {
	if !r.SemanticEnabled() {
		return nil, embed.ErrSemanticDisabled
	}
	return r.Get(tree, docstore.KindSemantic)
}

// Indexers returns every indexer of tree that the configuration
// supports: keyword always, semantic when an embedder is set.
func (r *Registry) Indexers(tree string) ([]*Indexer, error) {
	kw, err := r.Keyword(tree)
	if err != nil {
		return nil, err
	}
	out := []*Indexer{kw}
	if r.SemanticEnabled() {
		sem, err := r.Semantic(tree)
		if err != nil {
			return nil, err
		}
		out = append(out, sem)
	}
	return out, nil
}

// CloseTree closes and forgets the indexers of tree. The next Get opens
// them again.
func (r *Registry) CloseTree(tree string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := new(multierror.Error)
	for key, ix := range r.indexers {
		if key.tree != tree {
			continue
		}
		if err := ix.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %s indexer of tree %q: %w", key.kind, key.tree, err))
		}
		delete(r.indexers, key)
	}
	return errs.ErrorOrNil()
}

// Close closes every indexer and reports all failures.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := new(multierror.Error)
	for key, ix := range r.indexers {
		if err := ix.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %s indexer of tree %q: %w", key.kind, key.tree, err))
		}
	}
	r.indexers = make(map[registryKey]*Indexer)
	return errs.ErrorOrNil()
}
