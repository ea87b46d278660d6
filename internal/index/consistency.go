package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphan is a document whose object left the database.
	InconsistencyOrphan InconsistencyType = iota
	// InconsistencyStale is a document older or newer than its object.
	InconsistencyStale
	// InconsistencyMissing is an object without a document. Objects
	// without text are never indexed, so this may be expected.
	InconsistencyMissing
	// InconsistencyPublicOrphan is a public document without a full one.
	InconsistencyPublicOrphan
	// InconsistencyPublicStale is a public document whose change time
	// differs from the full document.
	InconsistencyPublicStale
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphan:
		return "orphan"
	case InconsistencyStale:
		return "stale"
	case InconsistencyMissing:
		return "missing"
	case InconsistencyPublicOrphan:
		return "public_orphan"
	case InconsistencyPublicStale:
		return "public_stale"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type   InconsistencyType
	Class  string
	Handle string
}

// CheckResult is the outcome of Check.
type CheckResult struct {
	// Checked is the number of database objects compared.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Counts groups the inconsistencies by type.
func (r *CheckResult) Counts() map[InconsistencyType]int {
	out := make(map[InconsistencyType]int)
	for _, i := range r.Inconsistencies {
		out[i.Type]++
	}
	return out
}

// Consistent reports whether nothing but missing objects was found.
func (r *CheckResult) Consistent() bool {
	for _, i := range r.Inconsistencies {
		if i.Type != InconsistencyMissing {
			return false
		}
	}
	return true
}

// Check compares the database with both collections without changing
// anything.
func (ix *Indexer) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	db, err := ix.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	dbInv, err := DatabaseInventory(ctx, db)
	if err != nil {
		return nil, err
	}
	full, err := ix.IndexInventory(ctx, true)
	if err != nil {
		return nil, err
	}
	public, err := ix.IndexInventory(ctx, false)
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	add := func(t InconsistencyType, refs []gramps.Ref) {
		for _, r := range refs {
			issues = append(issues, Inconsistency{Type: t, Class: r.Class.Lower(), Handle: r.Handle})
		}
	}
	cs := diffInventories(dbInv, full)
	add(InconsistencyOrphan, cs.deleted)
	add(InconsistencyStale, cs.updated)
	add(InconsistencyMissing, cs.added)

	pub := diffInventories(full, public)
	add(InconsistencyPublicOrphan, pub.deleted)
	add(InconsistencyPublicStale, pub.updated)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Type < issues[j].Type })
	res := &CheckResult{Checked: dbInv.Len(), Inconsistencies: issues, Duration: time.Since(start)}
	if !res.Consistent() {
		slog.Warn("index_inconsistent",
			slog.String("tree", ix.tree),
			slog.String("flavour", string(ix.flavour)),
			slog.Int("issues", len(issues)))
	}
	return res, nil
}

// Repair fixes the issues found by Check. Public orphans are deleted,
// objects with a stale public document are rewritten, and everything
// else is handled by an incremental reindex.
func (ix *Indexer) Repair(ctx context.Context, res *CheckResult, progress ProgressFunc) (*IncrementalResult, error) {
	var orphans []string
	var stale []gramps.Ref
	for _, i := range res.Inconsistencies {
		class, err := gramps.ParseClass(i.Class)
		if err != nil {
			continue
		}
		switch i.Type {
		case InconsistencyPublicOrphan:
			orphans = append(orphans, ix.DocumentID(class, i.Handle, true))
		case InconsistencyPublicStale:
			stale = append(stale, gramps.Ref{Class: class, Handle: i.Handle})
		}
	}
	if len(orphans) > 0 {
		if err := ix.public.Delete(ctx, orphans); err != nil {
			return nil, err
		}
		slog.Info("deleted_public_orphans", slog.String("tree", ix.tree), slog.Int("count", len(orphans)))
	}
	result, err := ix.ReindexIncremental(ctx, progress)
	if err != nil {
		return result, err
	}
	for _, r := range stale {
		if err := ix.AddOrUpdateObject(ctx, r.Handle, r.Class); err != nil {
			return result, err
		}
	}
	return result, nil
}
