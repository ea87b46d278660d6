package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramps-project/grampsindex/internal/docstore"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
)

func counts(t *testing.T, ix *Indexer) (full, public int) {
	t.Helper()
	ctx := context.Background()
	full, err := ix.Count(ctx, true)
	require.NoError(t, err)
	public, err = ix.Count(ctx, false)
	require.NoError(t, err)
	return full, public
}

func TestReindexFull_IndexesEveryObjectWithText(t *testing.T) {
	// Given a tree with a private person and an empty note
	db := familyDB()
	ix := newKeywordIndexer(t, db)
	var progress progressRecorder

	// When fully reindexed
	require.NoError(t, ix.ReindexFull(context.Background(), progress.fn))

	// Then every object with text is in the full collection and only
	// public text is in the public one
	full, public := counts(t, ix)
	assert.Equal(t, 4, full)
	assert.Equal(t, 3, public)

	// And progress counts every object, ending at total
	require.Len(t, progress.calls, 5)
	assert.Equal(t, [2]int{1, 5}, progress.calls[0])
	assert.Equal(t, [2]int{5, 5}, progress.last())
}

func TestReindexFull_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := familyDB()
	ix := newKeywordIndexer(t, db)

	require.NoError(t, ix.ReindexFull(ctx, nil))
	first, err := ix.IndexInventory(ctx, true)
	require.NoError(t, err)

	require.NoError(t, ix.ReindexFull(ctx, nil))
	second, err := ix.IndexInventory(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	full, public := counts(t, ix)
	assert.Equal(t, 4, full)
	assert.Equal(t, 3, public)
}

func TestReindexFull_PublicCollectionHasNoPrivateText(t *testing.T) {
	// Given a fully indexed tree
	ctx := context.Background()
	ix := newKeywordIndexer(t, familyDB())
	require.NoError(t, ix.ReindexFull(ctx, nil))

	// When every public document is listed with content
	res, err := ix.Search(ctx, SearchRequest{Query: "*", Page: 1, PageSize: 100, IncludeContent: true})
	require.NoError(t, err)

	// Then no document mentions the private person
	require.Equal(t, 3, res.Total)
	for _, h := range res.Hits {
		assert.NotContains(t, h.Content, "Jane", h.Handle)
		assert.NotEqual(t, "p2", h.Handle)
	}

	// And the full collection still finds her
	res, err = ix.Search(ctx, SearchRequest{Query: "Jane", Page: 1, PageSize: 10, IncludePrivate: true, ObjectTypes: []string{"Person"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, handles(res))
}

func TestReindexIncremental_ConvergesToFullReindex(t *testing.T) {
	// Given an indexed tree that then changes: one update, one deletion,
	// one new object
	ctx := context.Background()
	db := familyDB()
	ix := newKeywordIndexer(t, db)
	require.NoError(t, ix.ReindexFull(ctx, nil))

	db.Put(person("p1", "I0001", "Johnathan", "Doe", 200, false))
	db.Remove(gramps.ClassNote, "n1")
	db.Put(note("n2", "N0002", "Census of 1880", 300))

	// When reindexed incrementally
	var progress progressRecorder
	res, err := ix.ReindexIncremental(ctx, progress.fn)
	require.NoError(t, err)

	// Then the result counts each kind of change
	assert.Equal(t, IncrementalResult{Deleted: 1, Added: 1, Updated: 1}, *res)

	// And progress covers deleted, new (including the empty note) and
	// updated objects
	assert.Equal(t, [2]int{4, 4}, progress.last())

	// And the index matches what a full reindex produces
	fresh := newKeywordIndexer(t, db)
	require.NoError(t, fresh.ReindexFull(ctx, nil))
	for _, private := range []bool{true, false} {
		want, err := fresh.IndexInventory(ctx, private)
		require.NoError(t, err)
		got, err := ix.IndexInventory(ctx, private)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReindexIncremental_NothingChanged(t *testing.T) {
	ctx := context.Background()
	ix := newKeywordIndexer(t, familyDB())
	require.NoError(t, ix.ReindexFull(ctx, nil))

	res, err := ix.ReindexIncremental(ctx, nil)

	require.NoError(t, err)
	assert.Equal(t, IncrementalResult{}, *res)
}

func TestReindexIncremental_ObjectBecamePrivate(t *testing.T) {
	// Given an indexed public person
	ctx := context.Background()
	db := familyDB()
	ix := newKeywordIndexer(t, db)
	require.NoError(t, ix.ReindexFull(ctx, nil))

	// When the person is marked private
	db.Put(person("p1", "I0001", "John", "Doe", 150, true))
	res, err := ix.ReindexIncremental(ctx, nil)
	require.NoError(t, err)

	// Then the public document is gone while the full one is updated
	assert.Equal(t, 1, res.Updated)
	public, err := ix.IndexInventory(ctx, false)
	require.NoError(t, err)
	assert.NotContains(t, public["person"], "p1")
	all, err := ix.IndexInventory(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(150), all["person"]["p1"])
}

func TestReindexIncremental_UpdatedObjectLostItsText(t *testing.T) {
	ctx := context.Background()
	db := familyDB()
	ix := newKeywordIndexer(t, db)
	require.NoError(t, ix.ReindexFull(ctx, nil))

	db.Put(&gramps.Note{Base: gramps.Base{Handle: "n1", Change: 200}})
	_, err := ix.ReindexIncremental(ctx, nil)
	require.NoError(t, err)

	all, err := ix.IndexInventory(ctx, true)
	require.NoError(t, err)
	assert.NotContains(t, all["note"], "n1")
}

func TestReindexFull_WriteFailureStopsWithIndexFailed(t *testing.T) {
	// Given an indexer whose full collection rejects writes
	db := familyDB()
	ix, full, _ := newFlakyIndexer(t, db)
	full.failAdd = true

	// When fully reindexed
	err := ix.ReindexFull(context.Background(), nil)

	// Then the run aborts with ERR_505 naming the progress made
	require.Error(t, err)
	assert.Equal(t, gerrors.ErrCodeIndexFailed, gerrors.GetCode(err))
	assert.Contains(t, err.Error(), "stopped at 5 of 5")
	assert.ErrorIs(t, err, errInjected)
}

func TestReindexIncremental_WriteFailureKeepsPartialResult(t *testing.T) {
	ctx := context.Background()
	db := familyDB()
	ix, full, _ := newFlakyIndexer(t, db)
	require.NoError(t, ix.ReindexFull(ctx, nil))

	db.Remove(gramps.ClassNote, "n1")
	db.Put(note("n2", "N0002", "Census of 1880", 300))
	full.failAdd = true

	res, err := ix.ReindexIncremental(ctx, nil)

	require.Error(t, err)
	assert.Equal(t, gerrors.ErrCodeIndexFailed, gerrors.GetCode(err))
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Deleted)
}

func TestReindexFull_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix := newKeywordIndexer(t, familyDB())

	err := ix.ReindexFull(ctx, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiffInventories(t *testing.T) {
	db := Inventory{"person": {"a": 1, "b": 2, "c": 3}}
	ix := Inventory{"person": {"b": 2, "c": 9, "d": 4}}

	cs := diffInventories(db, ix)

	assert.Equal(t, []gramps.Ref{{Class: gramps.ClassPerson, Handle: "a"}}, cs.added)
	assert.Equal(t, []gramps.Ref{{Class: gramps.ClassPerson, Handle: "d"}}, cs.deleted)
	assert.Equal(t, []gramps.Ref{{Class: gramps.ClassPerson, Handle: "c"}}, cs.updated)
	assert.Equal(t, 3, cs.total())
	assert.Equal(t, 3, db.Len())
}

func TestIndexInventory_NormalizesTypeCase(t *testing.T) {
	// Given a fully indexed tree whose person document was stored with
	// a capitalized type
	ctx := context.Background()
	db := familyDB()
	ix := newKeywordIndexer(t, db)
	require.NoError(t, ix.ReindexFull(ctx, nil))
	require.NoError(t, ix.full.Add(ctx, []docstore.Document{{
		ID:       ix.DocumentID(gramps.ClassPerson, "p1", false),
		Content:  "I0001 John Doe",
		Metadata: docstore.Metadata{Type: "Person", Handle: "p1", Change: 100},
	}}))

	// When the index inventory is read
	inv, err := ix.IndexInventory(ctx, true)

	// Then the document is filed under the lower-case class
	require.NoError(t, err)
	assert.Contains(t, inv["person"], "p1")
	assert.NotContains(t, inv, "Person")

	// And an incremental run sees nothing to do
	res, err := ix.ReindexIncremental(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, IncrementalResult{}, *res)
}
