// Package index keeps the keyword and semantic search collections of a
// family tree consistent with the authoritative Gramps database.
//
// Every tree has two collections per flavour: the full collection holds
// all text, the public collection only text that is safe to show to
// users without access to private records.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/embed"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/text"
)

// Id and collection name suffixes.
const (
	publicSuffix   = "__p"
	semanticSuffix = "__s"
)

// ProgressFunc is called once per processed object with a 1-based
// counter; the last call of a run has current == total.
type ProgressFunc func(current, total int)

// Config describes one indexer.
type Config struct {
	// Tree is the namespace of every id and collection name.
	Tree string
	// Kind selects keyword or semantic text and collections.
	Kind docstore.Kind
	// Opener provides a Database handle per operation.
	Opener gramps.Opener
	// IndexURI is the SEARCH_INDEX_DB_URI; empty means in memory.
	IndexURI string
	// Embedder is required for semantic indexers.
	Embedder embed.Embedder
	// Dates formats dates in semantic texts; ISO when nil.
	Dates gramps.DateFormatter
}

// Indexer synchronizes the full and public collections of one tree and
// flavour with the database.
type Indexer struct {
	tree    string
	flavour docstore.Kind
	suffix  string
	opener  gramps.Opener
	builder text.Builder
	full    docstore.Collection
	public  docstore.Collection
}

// ValidateTree rejects tree ids that are empty or would collide with a
// collection suffix.
func ValidateTree(tree string) error {
	if strings.TrimSpace(tree) == "" {
		return gerrors.New(gerrors.ErrCodeInvalidTree, "tree id must not be empty", nil)
	}
	if strings.HasSuffix(tree, publicSuffix) || strings.HasSuffix(tree, semanticSuffix) {
		return gerrors.New(gerrors.ErrCodeInvalidTree,
			fmt.Sprintf("tree id %q must not end in %s or %s", tree, publicSuffix, semanticSuffix), nil)
	}
	return nil
}

// New opens the collections of cfg.Tree. The semantic flavour needs an
// embedder; without one New returns embed.ErrSemanticDisabled.
func New(cfg Config) (*Indexer, error) {
	if err := ValidateTree(cfg.Tree); err != nil {
		return nil, err
	}
	if cfg.Opener == nil {
		return nil, gerrors.ConfigError("database opener is required", nil)
	}

	var (
		builder  text.Builder
		embedder docstore.Embedder
	)
	switch cfg.Kind {
	case docstore.KindKeyword, "":
		cfg.Kind = docstore.KindKeyword
		builder = text.NewKeywordBuilder()
	case docstore.KindSemantic:
		if cfg.Embedder == nil {
			return nil, embed.ErrSemanticDisabled
		}
		builder = text.NewSemanticBuilder(cfg.Dates)
		// Paging through results re-embeds the same query.
		embedder = embed.NewCachedEmbedder(cfg.Embedder, 0)
	default:
		return nil, gerrors.ConfigError(fmt.Sprintf("unknown index kind %q", cfg.Kind), nil)
	}

	suffix := suffixFor(cfg.Kind)
	full, err := docstore.Open(cfg.IndexURI, cfg.Tree+suffix, cfg.Kind, embedder)
	if err != nil {
		return nil, err
	}
	public, err := docstore.Open(cfg.IndexURI, cfg.Tree+suffix+publicSuffix, cfg.Kind, embedder)
	if err != nil {
		_ = full.Close()
		return nil, err
	}

	slog.Debug("indexer_opened",
		slog.String("tree", cfg.Tree),
		slog.String("flavour", string(cfg.Kind)),
		slog.String("full", full.Name()),
		slog.String("public", public.Name()))
	return newIndexer(cfg.Tree, cfg.Kind, cfg.Opener, builder, full, public), nil
}

func newIndexer(tree string, kind docstore.Kind, opener gramps.Opener, builder text.Builder, full, public docstore.Collection) *Indexer {
	return &Indexer{
		tree:    tree,
		flavour: kind,
		suffix:  suffixFor(kind),
		opener:  opener,
		builder: builder,
		full:    full,
		public:  public,
	}
}

func suffixFor(kind docstore.Kind) string {
	if kind == docstore.KindSemantic {
		return semanticSuffix
	}
	return ""
}

// Tree returns the tree id.
func (ix *Indexer) Tree() string { return ix.tree }

// Kind returns the flavour of the indexer.
func (ix *Indexer) Kind() docstore.Kind { return ix.flavour }

// DocumentID returns the id of an object's document in the full
// collection, or in the public one when public is set.
func (ix *Indexer) DocumentID(class gramps.Class, handle string, public bool) string {
	id := class.Lower() + "_" + handle + "_" + ix.tree + ix.suffix
	if public {
		id += publicSuffix
	}
	return id
}

func (ix *Indexer) collection(includePrivate bool) docstore.Collection {
	if includePrivate {
		return ix.full
	}
	return ix.public
}

// write upserts the full documents of items. Public documents are
// written when there is public text and deleted otherwise, so an object
// that became private leaves the public collection.
func (ix *Indexer) write(ctx context.Context, items []*text.ObjectStrings) error {
	if len(items) == 0 {
		return nil
	}
	full := make([]docstore.Document, 0, len(items))
	var public []docstore.Document
	var hidden []string
	for _, s := range items {
		meta := docstore.Metadata{Type: s.Class.Lower(), Handle: s.Handle, Change: s.Change}
		full = append(full, docstore.Document{ID: ix.DocumentID(s.Class, s.Handle, false), Content: s.All, Metadata: meta})
		publicID := ix.DocumentID(s.Class, s.Handle, true)
		if s.Public == "" {
			hidden = append(hidden, publicID)
			continue
		}
		public = append(public, docstore.Document{ID: publicID, Content: s.Public, Metadata: meta})
	}

	if err := ix.full.Add(ctx, full); err != nil {
		return err
	}
	if len(public) > 0 {
		if err := ix.public.Add(ctx, public); err != nil {
			return err
		}
	}
	if len(hidden) > 0 {
		if err := ix.public.Delete(ctx, hidden); err != nil {
			return err
		}
	}
	ObjectsIndexed.WithLabelValues(ix.tree, string(ix.flavour)).Add(float64(len(full)))
	return nil
}

// remove deletes the documents of refs from both collections.
func (ix *Indexer) remove(ctx context.Context, refs []gramps.Ref) error {
	if len(refs) == 0 {
		return nil
	}
	full := make([]string, len(refs))
	public := make([]string, len(refs))
	for i, r := range refs {
		full[i] = ix.DocumentID(r.Class, r.Handle, false)
		public[i] = ix.DocumentID(r.Class, r.Handle, true)
	}
	if err := ix.full.Delete(ctx, full); err != nil {
		return err
	}
	if err := ix.public.Delete(ctx, public); err != nil {
		return err
	}
	ObjectsDeleted.WithLabelValues(ix.tree, string(ix.flavour)).Add(float64(len(refs)))
	return nil
}

// chunkSize is the number of objects written per batch in a full
// reindex. Embedding is slow and memory hungry, so semantic batches stay
// small.
func (ix *Indexer) chunkSize(total int) int {
	if ix.flavour == docstore.KindSemantic {
		return min(100, total/10+1)
	}
	return max(100, total/10)
}

// Close closes both collections. The embedder belongs to the caller.
func (ix *Indexer) Close() error {
	errFull := ix.full.Close()
	errPublic := ix.public.Close()
	if errFull != nil {
		return errFull
	}
	return errPublic
}
