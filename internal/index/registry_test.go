package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/embed"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
)

func registryFor(dbs map[string]*gramps.MemoryDB, embedder embed.Embedder) *Registry {
	return NewRegistry(RegistryConfig{
		OpenerFor: func(tree string) (gramps.Opener, error) {
			db, ok := dbs[tree]
			if !ok {
				return nil, fmt.Errorf("no database for %s", tree)
			}
			return db.Opener(), nil
		},
		Embedder: embedder,
	})
}

func TestRegistry_GetCachesIndexers(t *testing.T) {
	r := registryFor(map[string]*gramps.MemoryDB{"smith": familyDB()}, nil)
	defer func() { _ = r.Close() }()

	a, err := r.Keyword("smith")
	require.NoError(t, err)
	b, err := r.Get("smith", "")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.False(t, r.SemanticEnabled())
}

func TestRegistry_SemanticDisabled(t *testing.T) {
	r := registryFor(map[string]*gramps.MemoryDB{"smith": familyDB()}, nil)
	defer func() { _ = r.Close() }()

	_, err := r.Semantic("smith")
	assert.ErrorIs(t, err, embed.ErrSemanticDisabled)

	ixs, err := r.Indexers("smith")
	require.NoError(t, err)
	assert.Len(t, ixs, 1)
}

func TestRegistry_IndexersWithEmbedder(t *testing.T) {
	r := registryFor(map[string]*gramps.MemoryDB{"smith": familyDB()}, embed.NewStaticEmbedder())
	defer func() { _ = r.Close() }()

	ixs, err := r.Indexers("smith")

	require.NoError(t, err)
	require.Len(t, ixs, 2)
	assert.Equal(t, docstore.KindKeyword, ixs[0].Kind())
	assert.Equal(t, docstore.KindSemantic, ixs[1].Kind())
}

func TestRegistry_Errors(t *testing.T) {
	r := registryFor(map[string]*gramps.MemoryDB{}, nil)

	_, err := r.Keyword("smith__p")
	assert.Equal(t, gerrors.ErrCodeInvalidTree, gerrors.GetCode(err))

	_, err = r.Keyword("unknown")
	assert.ErrorContains(t, err, "no database for unknown")

	assert.NoError(t, r.Close())
}

func TestRegistry_CloseReportsEveryFailure(t *testing.T) {
	// Given two indexers whose collections fail to close
	r := registryFor(map[string]*gramps.MemoryDB{}, nil)
	for _, tree := range []string{"a", "b"} {
		ix, full, _ := newFlakyIndexer(t, familyDB())
		full.failClose = true
		ix.tree = tree
		r.indexers[registryKey{tree: tree, kind: docstore.KindKeyword}] = ix
	}

	// When the registry is closed
	err := r.Close()

	// Then both failures are reported and the registry is empty
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tree "a"`)
	assert.Contains(t, err.Error(), `tree "b"`)
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, r.indexers)
}

func TestRegistry_CloseTreeReopensOnNextGet(t *testing.T) {
	// Given indexers of two trees
	r := registryFor(map[string]*gramps.MemoryDB{"smith": familyDB(), "jones": familyDB()}, nil)
	defer func() { _ = r.Close() }()
	smith, err := r.Keyword("smith")
	require.NoError(t, err)
	jones, err := r.Keyword("jones")
	require.NoError(t, err)

	// When one tree is closed
	require.NoError(t, r.CloseTree("smith"))

	// Then only that tree is opened again
	reopened, err := r.Keyword("smith")
	require.NoError(t, err)
	assert.NotSame(t, smith, reopened)
	same, err := r.Keyword("jones")
	require.NoError(t, err)
	assert.Same(t, jones, same)
}
