package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gramps-project/grampsindex/internal/docstore"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/text"
)

// IncrementalResult summarises an incremental reindex.
type IncrementalResult struct {
	Deleted int
	Added   int
	Updated int
}

// Inventory maps lower-case class -> handle -> change.
type Inventory map[string]map[string]int64

func (inv Inventory) put(class, handle string, change int64) {
	m, ok := inv[class]
	if !ok {
		m = make(map[string]int64)
		inv[class] = m
	}
	m[handle] = change
}

// Len returns the number of objects in the inventory.
func (inv Inventory) Len() int {
	n := 0
	for _, m := range inv {
		n += len(m)
	}
	return n
}

// bulkError aborts a reindex run.
func (ix *Indexer) bulkError(op string, err error, done, total int) error {
	ix.recordError(op)
	slog.Error("reindex_failed",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("mode", op),
		slog.Int("done", done),
		slog.Int("total", total),
		slog.String("error", err.Error()))
	return gerrors.New(gerrors.ErrCodeIndexFailed,
		fmt.Sprintf("%s reindex of tree %s stopped at %d of %d", op, ix.tree, done, total), err).
		WithDetail("tree", ix.tree).
		WithSuggestion("Run the reindex again; completed objects are kept")
}

// ReindexFull empties both collections and indexes every object of the
// database. Objects without text are skipped.
func (ix *Indexer) ReindexFull(ctx context.Context, progress ProgressFunc) error {
	start := time.Now()
	db, err := ix.opener.Open(ctx)
	if err != nil {
		return ix.bulkError("full", err, 0, 0)
	}
	defer func() { _ = db.Close() }()

	total, err := gramps.TotalObjects(ctx, db)
	if err != nil {
		return ix.bulkError("full", err, 0, 0)
	}
	slog.Info("reindex_started",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("mode", "full"),
		slog.Int("total", total))

	if err := ix.full.DeleteAll(ctx); err != nil {
		return ix.bulkError("full", err, 0, total)
	}
	if err := ix.public.DeleteAll(ctx); err != nil {
		return ix.bulkError("full", err, 0, total)
	}

	size := ix.chunkSize(total)
	batch := make([]*text.ObjectStrings, 0, size)
	done := 0
	for _, class := range gramps.Classes {
		handles, err := db.Handles(ctx, class)
		if err != nil {
			return ix.bulkError("full", err, done, total)
		}
		for _, h := range handles {
			if err := ctx.Err(); err != nil {
				return ix.bulkError("full", err, done, total)
			}
			s, err := text.ObjectStringsFor(ctx, db, ix.builder, class, h)
			if err != nil {
				return ix.bulkError("full", err, done, total)
			}
			done++
			if progress != nil {
				progress(done, total)
			}
			if s == nil {
				continue
			}
			batch = append(batch, s)
			if len(batch) >= size {
				if err := ix.write(ctx, batch); err != nil {
					return ix.bulkError("full", err, done, total)
				}
				batch = batch[:0]
			}
		}
	}
	if err := ix.write(ctx, batch); err != nil {
		return ix.bulkError("full", err, done, total)
	}

	elapsed := time.Since(start)
	ReindexDuration.WithLabelValues(ix.tree, string(ix.flavour), "full").Observe(elapsed.Seconds())
	slog.Info("reindex_complete",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("mode", "full"),
		slog.Int("objects", done),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	return nil
}

// DatabaseInventory reads the change time of every object.
func DatabaseInventory(ctx context.Context, db gramps.Database) (Inventory, error) {
	inv := make(Inventory)
	for _, class := range gramps.Classes {
		ts, err := db.Timestamps(ctx, class)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s timestamps: %w", class.Lower(), err)
		}
		for h, c := range ts {
			inv.put(class.Lower(), h, c)
		}
	}
	return inv, nil
}

// IndexInventory reads the metadata of every document in the full
// collection, or in the public one.
func (ix *Indexer) IndexInventory(ctx context.Context, includePrivate bool) (Inventory, error) {
	page, err := ix.collection(includePrivate).Get(ctx, docstore.GetRequest{})
	if err != nil {
		return nil, err
	}
	inv := make(Inventory)
	for _, hit := range page.Results {
		// Inventory keys are lower-case whatever the writer stored.
		inv.put(strings.ToLower(hit.Metadata.Type), hit.Metadata.Handle, hit.Metadata.Change)
	}
	return inv, nil
}

// changeSet holds per-class handle lists, sorted for stable runs.
type changeSet struct {
	deleted, added, updated []gramps.Ref
}

func (c changeSet) total() int {
	return len(c.deleted) + len(c.added) + len(c.updated)
}

// diffInventories compares the database with the index: new objects
// are missing from the index, deleted ones missing from the database
// and updated ones present in both with a different change time.
func diffInventories(db, ix Inventory) changeSet {
	var cs changeSet
	for _, class := range gramps.Classes {
		key := class.Lower()
		dbClass, ixClass := db[key], ix[key]
		cs.added = append(cs.added, refsWhere(class, dbClass, func(h string, _ int64) bool {
			_, ok := ixClass[h]
			return !ok
		})...)
		cs.deleted = append(cs.deleted, refsWhere(class, ixClass, func(h string, _ int64) bool {
			_, ok := dbClass[h]
			return !ok
		})...)
		cs.updated = append(cs.updated, refsWhere(class, dbClass, func(h string, c int64) bool {
			ixChange, ok := ixClass[h]
			return ok && ixChange != c
		})...)
	}
	return cs
}

func refsWhere(class gramps.Class, m map[string]int64, keep func(string, int64) bool) []gramps.Ref {
	var handles []string
	for h, c := range m {
		if keep(h, c) {
			handles = append(handles, h)
		}
	}
	sort.Strings(handles)
	refs := make([]gramps.Ref, len(handles))
	for i, h := range handles {
		refs[i] = gramps.Ref{Class: class, Handle: h}
	}
	return refs
}

// ReindexIncremental brings the collections up to date with the
// database by comparing change times. Deletions run first, then new and
// updated objects are written.
func (ix *Indexer) ReindexIncremental(ctx context.Context, progress ProgressFunc) (*IncrementalResult, error) {
	start := time.Now()
	db, err := ix.opener.Open(ctx)
	if err != nil {
		return nil, ix.bulkError("incremental", err, 0, 0)
	}
	defer func() { _ = db.Close() }()

	dbInv, err := DatabaseInventory(ctx, db)
	if err != nil {
		return nil, ix.bulkError("incremental", err, 0, 0)
	}
	ixInv, err := ix.IndexInventory(ctx, true)
	if err != nil {
		return nil, ix.bulkError("incremental", err, 0, 0)
	}
	cs := diffInventories(dbInv, ixInv)
	total := cs.total()
	slog.Info("reindex_started",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("mode", "incremental"),
		slog.Int("deleted", len(cs.deleted)),
		slog.Int("new", len(cs.added)),
		slog.Int("updated", len(cs.updated)))

	done := 0
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}
	result := &IncrementalResult{}

	size := ix.chunkSize(total)
	for i := 0; i < len(cs.deleted); i += size {
		chunk := cs.deleted[i:min(i+size, len(cs.deleted))]
		if err := ix.remove(ctx, chunk); err != nil {
			return result, ix.bulkError("incremental", err, done, total)
		}
		for range chunk {
			step()
		}
		result.Deleted += len(chunk)
	}

	upsert := func(refs []gramps.Ref, indexed bool, counter *int) error {
		batch := make([]*text.ObjectStrings, 0, size)
		var gone []gramps.Ref
		flush := func() error {
			if err := ix.write(ctx, batch); err != nil {
				return err
			}
			if err := ix.remove(ctx, gone); err != nil {
				return err
			}
			batch, gone = batch[:0], gone[:0]
			return nil
		}
		for _, r := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := text.ObjectStringsFor(ctx, db, ix.builder, r.Class, r.Handle)
			if err != nil {
				return err
			}
			step()
			if s == nil {
				// An indexed object whose text vanished must not linger.
				if indexed {
					gone = append(gone, r)
				}
				continue
			}
			batch = append(batch, s)
			*counter++
			if len(batch) >= size {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	}
	if err := upsert(cs.added, false, &result.Added); err != nil {
		return result, ix.bulkError("incremental", err, done, total)
	}
	if err := upsert(cs.updated, true, &result.Updated); err != nil {
		return result, ix.bulkError("incremental", err, done, total)
	}

	elapsed := time.Since(start)
	ReindexDuration.WithLabelValues(ix.tree, string(ix.flavour), "incremental").Observe(elapsed.Seconds())
	slog.Info("reindex_complete",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("mode", "incremental"),
		slog.Int("deleted", result.Deleted),
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	return result, nil
}
