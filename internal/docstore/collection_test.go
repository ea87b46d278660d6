package docstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// wordEmbedder is a bag-of-words embedder for tests.
type wordEmbedder struct {
	model string
	dims  int
}

func (w wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, w.dims)
		for _, word := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%uint32(w.dims)]++
		}
		out[i] = vec
	}
	return out, nil
}

func (w wordEmbedder) Dimensions() int   { return w.dims }
func (w wordEmbedder) ModelName() string { return w.model }

func testEmbedder() wordEmbedder { return wordEmbedder{model: "words", dims: 64} }

func sampleDocs() []Document {
	return []Document{
		{ID: "person_p1_t", Content: "John Doe farmer", Metadata: Metadata{Type: "person", Handle: "p1", Change: 100}},
		{ID: "person_p2_t", Content: "Jane Roe weaver", Metadata: Metadata{Type: "person", Handle: "p2", Change: 200}},
		{ID: "event_e1_t", Content: "Birth of John in Springfield", Metadata: Metadata{Type: "event", Handle: "e1", Change: 300}},
	}
}

type collectionFactory func(t *testing.T) Collection

func factories() map[string]collectionFactory {
	return map[string]collectionFactory{
		"bleve": func(t *testing.T) Collection {
			c, err := NewBleveCollection("", "t")
			require.NoError(t, err)
			return c
		},
		"fts": func(t *testing.T) Collection {
			c, err := NewFTSCollection("", "t")
			require.NoError(t, err)
			return c
		},
		"vector": func(t *testing.T) Collection {
			c, err := NewVectorCollection("", "t__s", testEmbedder())
			require.NoError(t, err)
			return c
		},
	}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestCollections_Contract(t *testing.T) {
	ctx := context.Background()
	for name, newCollection := range factories() {
		t.Run(name, func(t *testing.T) {
			// Given a collection holding three documents
			c := newCollection(t)
			defer c.Close()
			require.NoError(t, c.Add(ctx, sampleDocs()))

			// When listing everything
			page, err := c.Get(ctx, GetRequest{})

			// Then every document is returned with its metadata
			require.NoError(t, err)
			assert.Equal(t, 3, page.Total)
			assert.Equal(t, []string{"event_e1_t", "person_p1_t", "person_p2_t"}, ids(page.Results))
			assert.Equal(t, Metadata{Type: "event", Handle: "e1", Change: 300}, page.Results[0].Metadata)
			assert.Equal(t, "Birth of John in Springfield", page.Results[0].Content)

			// Filters
			n, err := c.Count(ctx, &Where{Types: []string{"person"}})
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			n, err = c.Count(ctx, &Where{Change: &ChangeFilter{Op: OpGT, Value: 150}})
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			n, err = c.Count(ctx, &Where{Types: []string{"person"}, Change: &ChangeFilter{Op: OpGTE, Value: 200}})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			n, err = c.Count(ctx, &Where{Change: &ChangeFilter{Op: OpLTE, Value: 100}})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			// Ordering and pagination
			page, err = c.Get(ctx, GetRequest{OrderBy: []string{"-change"}})
			require.NoError(t, err)
			assert.Equal(t, []string{"event_e1_t", "person_p2_t", "person_p1_t"}, ids(page.Results))
			page, err = c.Get(ctx, GetRequest{Limit: 1, Offset: 1, OrderBy: []string{"change"}})
			require.NoError(t, err)
			assert.Equal(t, 3, page.Total)
			assert.Equal(t, []string{"person_p2_t"}, ids(page.Results))

			// Upsert replaces by ID
			require.NoError(t, c.Add(ctx, []Document{{ID: "person_p1_t", Content: "John Doe blacksmith",
				Metadata: Metadata{Type: "person", Handle: "p1", Change: 400}}}))
			page, err = c.Get(ctx, GetRequest{Where: &Where{Change: &ChangeFilter{Op: OpGT, Value: 350}}})
			require.NoError(t, err)
			require.Len(t, page.Results, 1)
			assert.Equal(t, "John Doe blacksmith", page.Results[0].Content)

			// Delete ignores unknown IDs
			require.NoError(t, c.Delete(ctx, []string{"person_p1_t", "missing"}))
			n, err = c.Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, c.DeleteAll(ctx))
			n, err = c.Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestCollections_RejectInvalidRequests(t *testing.T) {
	ctx := context.Background()
	for name, newCollection := range factories() {
		t.Run(name, func(t *testing.T) {
			c := newCollection(t)
			defer c.Close()

			_, err := c.Get(ctx, GetRequest{OrderBy: []string{"score"}})
			assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeInvalidQuery))

			_, err = c.Get(ctx, GetRequest{Where: &Where{Change: &ChangeFilter{Op: "$eq"}}})
			assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeInvalidFilter))

			_, err = c.Get(ctx, GetRequest{Offset: -1})
			assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeInvalidInput))
		})
	}
}

func TestKeywordCollections_Query(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"bleve", "fts"} {
		t.Run(name, func(t *testing.T) {
			c := factories()[name](t)
			defer c.Close()
			require.NoError(t, c.Add(ctx, sampleDocs()))

			// When searching for a word in two documents
			page, err := c.Query(ctx, QueryRequest{Text: "john"})

			// Then both match, ranked by score
			require.NoError(t, err)
			assert.Equal(t, 2, page.Total)
			assert.ElementsMatch(t, []string{"person_p1_t", "event_e1_t"}, ids(page.Results))
			assert.GreaterOrEqual(t, page.Results[0].Score, page.Results[1].Score)

			page, err = c.Query(ctx, QueryRequest{Text: "Springfield"})
			require.NoError(t, err)
			assert.Equal(t, []string{"event_e1_t"}, ids(page.Results))

			page, err = c.Query(ctx, QueryRequest{Text: "john", Where: &Where{Types: []string{"person"}}})
			require.NoError(t, err)
			assert.Equal(t, []string{"person_p1_t"}, ids(page.Results))

			page, err = c.Query(ctx, QueryRequest{Text: "nobody"})
			require.NoError(t, err)
			assert.Equal(t, 0, page.Total)
			assert.Empty(t, page.Results)
		})
	}
}

func TestVectorCollection_QueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	c, err := NewVectorCollection("", "t__s", testEmbedder())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Add(ctx, sampleDocs()))

	// When querying with the exact text of a document
	page, err := c.Query(ctx, QueryRequest{Text: "Jane Roe weaver", Limit: 2})

	// Then that document ranks first with full similarity
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "person_p2_t", page.Results[0].ID)
	assert.InDelta(t, 1.0, page.Results[0].Score, 1e-5)
	assert.Equal(t, "Jane Roe weaver", page.Results[0].Content)
	assert.GreaterOrEqual(t, page.Results[0].Score, page.Results[1].Score)

	// And filters apply before pagination
	page, err = c.Query(ctx, QueryRequest{Text: "Jane Roe weaver", Where: &Where{Types: []string{"event"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, []string{"event_e1_t"}, ids(page.Results))

	// And an explicit order overrides similarity
	page, err = c.Query(ctx, QueryRequest{Text: "Jane Roe weaver", OrderBy: []string{"change"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"person_p1_t", "person_p2_t", "event_e1_t"}, ids(page.Results))
}

func TestVectorCollection_ReopenRebuildsGraph(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	c, err := NewVectorCollection(path, "t__s", testEmbedder())
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, sampleDocs()))
	require.NoError(t, c.Delete(ctx, []string{"person_p1_t"}))
	require.NoError(t, c.Close())

	// When reopened with the same model
	c, err = NewVectorCollection(path, "t__s", testEmbedder())
	require.NoError(t, err)

	// Then queries see the stored vectors
	page, err := c.Query(ctx, QueryRequest{Text: "Birth of John in Springfield"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "event_e1_t", page.Results[0].ID)
	require.NoError(t, c.Close())

	// When reopened with another model
	other := wordEmbedder{model: "other", dims: 32}
	c, err = NewVectorCollection(path, "t__s", other)
	require.NoError(t, err)
	defer c.Close()

	// Then queries fail until the collection is rebuilt
	_, err = c.Query(ctx, QueryRequest{Text: "john"})
	assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeDimensionMismatch))
	require.NoError(t, c.DeleteAll(ctx))
	require.NoError(t, c.Add(ctx, sampleDocs()))
	page, err = c.Query(ctx, QueryRequest{Text: "Jane Roe weaver"})
	require.NoError(t, err)
	assert.Equal(t, "person_p2_t", page.Results[0].ID)
}

func numberedDocs(n int, word string) []Document {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{
			ID:       fmt.Sprintf("note_n%d_t", i),
			Content:  fmt.Sprintf("parish %s %d", word, i),
			Metadata: Metadata{Type: "note", Handle: fmt.Sprintf("n%d", i), Change: int64(i)},
		}
	}
	return docs
}

func TestVectorCollection_RepeatedUpsertsCompactGraph(t *testing.T) {
	ctx := context.Background()
	c, err := NewVectorCollection("", "t__s", testEmbedder())
	require.NoError(t, err)
	defer c.Close()

	// Given a collection of 50 documents
	docs := numberedDocs(50, "register")
	require.NoError(t, c.Add(ctx, docs))
	require.Equal(t, 50, c.graph.Len())

	// When documents are replaced one at a time, many times over
	for i := 0; i < 200; i++ {
		d := docs[i%len(docs)]
		d.Content = fmt.Sprintf("parish census %d", i)
		require.NoError(t, c.Add(ctx, []Document{d}))

		// Then orphaned nodes never exceed a quarter of the graph
		orphans := c.graph.Len() - len(c.idMap)
		assert.LessOrEqual(t, float64(orphans), maxOrphanShare*float64(c.graph.Len()), "after upsert %d", i)
	}
	assert.Len(t, c.idMap, 50)
	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	// When every document is deleted
	all := make([]string, len(docs))
	for i, d := range docs {
		all[i] = d.ID
	}
	require.NoError(t, c.Delete(ctx, all))

	// Then the graph is empty again
	assert.Equal(t, 0, c.graph.Len())
	page, err := c.Query(ctx, QueryRequest{Text: "parish census"})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestVectorCollection_CompactionKeepsSearchResults(t *testing.T) {
	ctx := context.Background()
	c, err := NewVectorCollection("", "t__s", testEmbedder())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Add(ctx, sampleDocs()))

	// When one document is replaced until the graph has been rebuilt
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Add(ctx, []Document{{
			ID: "person_p2_t", Content: "Jane Roe miller", Metadata: Metadata{Type: "person", Handle: "p2", Change: int64(300 + i)},
		}}))
	}

	// Then the latest content and metadata are found
	page, err := c.Query(ctx, QueryRequest{Text: "Jane Roe miller", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "person_p2_t", page.Results[0].ID)
	assert.Equal(t, int64(304), page.Results[0].Metadata.Change)
	assert.Equal(t, 3, page.Total)
}

func TestFTSCollection_ReAddReplacesRows(t *testing.T) {
	ctx := context.Background()
	c, err := NewFTSCollection("", "t")
	require.NoError(t, err)
	defer c.Close()

	// Given a bulk of documents added twice, the second time with new text
	require.NoError(t, c.Add(ctx, numberedDocs(500, "register")))
	require.NoError(t, c.Add(ctx, numberedDocs(500, "census")))

	// Then each document has exactly one row in both tables
	var docsRows, ftsRows int
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM "+c.docs).Scan(&docsRows))
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM "+c.fts).Scan(&ftsRows))
	assert.Equal(t, 500, docsRows)
	assert.Equal(t, 500, ftsRows)

	// And only the new text is searchable
	page, err := c.Query(ctx, QueryRequest{Text: "register"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	page, err = c.Query(ctx, QueryRequest{Text: "census", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 500, page.Total)
	assert.Equal(t, "census", strings.Fields(page.Results[0].Content)[1])

	// When half of them are deleted, including an unknown id
	ids := []string{"note_missing_t"}
	for i := 0; i < 250; i++ {
		ids = append(ids, fmt.Sprintf("note_n%d_t", i))
	}
	require.NoError(t, c.Delete(ctx, ids))

	// Then both tables shrink together
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM "+c.docs).Scan(&docsRows))
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM "+c.fts).Scan(&ftsRows))
	assert.Equal(t, 250, docsRows)
	assert.Equal(t, 250, ftsRows)
	page, err = c.Query(ctx, QueryRequest{Text: "census"})
	require.NoError(t, err)
	assert.Equal(t, 250, page.Total)
}

func TestFTSCollection_SharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	full, err := NewFTSCollection(path, "tree")
	require.NoError(t, err)
	defer full.Close()
	public, err := NewFTSCollection(path, "tree__p")
	require.NoError(t, err)
	defer public.Close()

	// Given documents added to one collection
	require.NoError(t, full.Add(ctx, sampleDocs()))

	// Then the other collection in the same file stays empty
	n, err := public.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = full.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBleveCollection_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewBleveCollection(dir, "tree")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, sampleDocs()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")

	c, err = NewBleveCollection(dir, "tree")
	require.NoError(t, err)
	defer c.Close()
	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
