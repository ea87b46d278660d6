package index

import (
	"context"
	"fmt"
	"log/slog"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
	"github.com/gramps-project/grampsindex/internal/text"
)

func (ix *Indexer) objectError(op string, class gramps.Class, handle string, err error) error {
	ix.recordError(op)
	slog.Warn("index_object_failed",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("operation", op),
		slog.String("class", string(class)),
		slog.String("handle", handle),
		slog.String("error", err.Error()))
	return gerrors.New(gerrors.ErrCodeIndexInconsistent,
		fmt.Sprintf("failed to %s %s %s in the %s index of tree %s", op, class.Lower(), handle, ix.flavour, ix.tree), err).
		WithDetail("handle", handle).
		WithSuggestion("Run an incremental reindex to repair the index")
}

// AddOrUpdateObject writes the current text of one object to both
// collections. An object without text, or one that no longer exists, is
// removed instead. The database is only read.
func (ix *Indexer) AddOrUpdateObject(ctx context.Context, handle string, class gramps.Class) error {
	if !class.Valid() {
		return gerrors.New(gerrors.ErrCodeUnknownClass, "unknown object class: "+string(class), nil)
	}
	db, err := ix.opener.Open(ctx)
	if err != nil {
		return ix.objectError("update", class, handle, err)
	}
	defer func() { _ = db.Close() }()

	s, err := text.ObjectStringsFor(ctx, db, ix.builder, class, handle)
	if err != nil {
		return ix.objectError("update", class, handle, err)
	}
	if s == nil {
		if err := ix.remove(ctx, []gramps.Ref{{Class: class, Handle: handle}}); err != nil {
			return ix.objectError("update", class, handle, err)
		}
		return nil
	}
	if err := ix.write(ctx, []*text.ObjectStrings{s}); err != nil {
		return ix.objectError("update", class, handle, err)
	}
	slog.Debug("object_indexed",
		slog.String("tree", ix.tree),
		slog.String("flavour", string(ix.flavour)),
		slog.String("class", string(class)),
		slog.String("handle", handle))
	return nil
}

// DeleteObject removes one object from both collections. Unknown
// objects are ignored.
func (ix *Indexer) DeleteObject(ctx context.Context, handle string, class gramps.Class) error {
	if !class.Valid() {
		return gerrors.New(gerrors.ErrCodeUnknownClass, "unknown object class: "+string(class), nil)
	}
	if err := ix.remove(ctx, []gramps.Ref{{Class: class, Handle: handle}}); err != nil {
		return ix.objectError("delete", class, handle, err)
	}
	return nil
}
