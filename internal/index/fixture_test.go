package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/embed"
	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/text"
)

func person(handle, id, first, surname string, change int64, private bool) *gramps.Person {
	return &gramps.Person{
		Base: gramps.Base{Handle: handle, GrampsID: id, Change: change, Private: private},
		PrimaryName: gramps.Name{
			FirstName: first,
			Surnames:  []gramps.Surname{{Surname: surname, Primary: true}},
		},
		BirthRefIndex: -1,
		DeathRefIndex: -1,
	}
}

func note(handle, id, body string, change int64) *gramps.Note {
	return &gramps.Note{Base: gramps.Base{Handle: handle, GrampsID: id, Change: change}, Text: body, Type: gramps.NoteTypeGeneral}
}

// familyDB holds five objects. Jane (p2) is private and n9 has no text,
// so the full collection gets four documents and the public one three.
func familyDB() *gramps.MemoryDB {
	db := gramps.NewMemoryDB()
	db.Put(
		person("p1", "I0001", "John", "Doe", 100, false),
		person("p2", "I0002", "Jane", "Roe", 101, true),
		&gramps.Family{
			Base:         gramps.Base{Handle: "f1", GrampsID: "F0001", Change: 102},
			FatherHandle: "p1",
			MotherHandle: "p2",
		},
		note("n1", "N0001", "Parish records of Springfield", 103),
		&gramps.Note{Base: gramps.Base{Handle: "n9", Change: 104}},
	)
	return db
}

func newKeywordIndexer(t *testing.T, db *gramps.MemoryDB) *Indexer {
	t.Helper()
	ix, err := New(Config{Tree: "smith", Kind: docstore.KindKeyword, Opener: db.Opener()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func newSemanticIndexer(t *testing.T, db *gramps.MemoryDB) *Indexer {
	t.Helper()
	ix, err := New(Config{Tree: "smith", Kind: docstore.KindSemantic, Opener: db.Opener(), Embedder: embed.NewStaticEmbedder()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

// progressRecorder collects ProgressFunc calls.
type progressRecorder struct {
	calls [][2]int
}

func (p *progressRecorder) fn(current, total int) {
	p.calls = append(p.calls, [2]int{current, total})
}

func (p *progressRecorder) last() [2]int {
	if len(p.calls) == 0 {
		return [2]int{}
	}
	return p.calls[len(p.calls)-1]
}

var errInjected = errors.New("injected failure")

// flakyCollection wraps a collection and fails selected operations.
type flakyCollection struct {
	docstore.Collection
	mu        sync.Mutex
	failAdd   bool
	failQuery bool
	failClose bool
	adds      int
}

func (f *flakyCollection) Add(ctx context.Context, docs []docstore.Document) error {
	f.mu.Lock()
	f.adds++
	fail := f.failAdd
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Collection.Add(ctx, docs)
}

func (f *flakyCollection) Query(ctx context.Context, req docstore.QueryRequest) (*docstore.Page, error) {
	if f.failQuery {
		return nil, errInjected
	}
	return f.Collection.Query(ctx, req)
}

func (f *flakyCollection) Close() error {
	_ = f.Collection.Close()
	if f.failClose {
		return errInjected
	}
	return nil
}

// newFlakyIndexer builds a keyword indexer over in-memory collections
// that can be told to fail.
func newFlakyIndexer(t *testing.T, db *gramps.MemoryDB) (*Indexer, *flakyCollection, *flakyCollection) {
	t.Helper()
	full, err := docstore.NewBleveCollection("", "smith")
	require.NoError(t, err)
	public, err := docstore.NewBleveCollection("", "smith__p")
	require.NoError(t, err)
	ff := &flakyCollection{Collection: full}
	fp := &flakyCollection{Collection: public}
	ix := newIndexer("smith", docstore.KindKeyword, db.Opener(), text.NewKeywordBuilder(), ff, fp)
	return ix, ff, fp
}

func handles(res *SearchResult) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Handle
	}
	return out
}
