package text

import (
	"context"
	"errors"
	"fmt"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
)

// Builder renders an object into a PString.
type Builder interface {
	Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error)
}

// ClassBuilder renders objects of a single class.
type ClassBuilder interface {
	Class() gramps.Class
	Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error)
}

// Registry dispatches to the ClassBuilder registered for an object's
// class. Classes without a builder render as empty text.
type Registry struct {
	builders map[gramps.Class]ClassBuilder
}

// NewRegistry returns a registry holding the given builders. A later
// builder for the same class replaces an earlier one.
func NewRegistry(builders ...ClassBuilder) *Registry {
	r := &Registry{builders: make(map[gramps.Class]ClassBuilder, len(builders))}
	for _, b := range builders {
		r.builders[b.Class()] = b
	}
	return r
}

// Register adds or replaces the builder for b's class.
func (r *Registry) Register(b ClassBuilder) {
	r.builders[b.Class()] = b
}

// Supports reports whether a builder is registered for class.
func (r *Registry) Supports(class gramps.Class) bool {
	_, ok := r.builders[class]
	return ok
}

// Build renders obj. The public rendering of a private object is empty.
func (r *Registry) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	b, ok := r.builders[obj.ObjectClass()]
	if !ok {
		return PString{}, nil
	}
	s, err := b.Build(ctx, db, obj)
	if err != nil {
		return PString{}, err
	}
	if obj.IsPrivate() {
		return MarkPrivate(s), nil
	}
	return s, nil
}

// ObjectStrings is the indexable text of one object.
type ObjectStrings struct {
	Class   gramps.Class
	Handle  string
	Private bool
	Change  int64
	Public  string
	All     string
}

// Strings renders obj with b. It returns nil when the object has no
// extractable text.
func Strings(ctx context.Context, db gramps.Database, b Builder, obj gramps.Object) (*ObjectStrings, error) {
	s, err := b.Build(ctx, db, obj)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeTextExtraction,
			fmt.Sprintf("failed to extract text from %s %s", obj.ObjectClass(), obj.ObjectHandle()), err)
	}
	if s.All() == "" {
		return nil, nil
	}
	return &ObjectStrings{
		Class:   obj.ObjectClass(),
		Handle:  obj.ObjectHandle(),
		Private: obj.IsPrivate(),
		Change:  obj.ChangeTime(),
		Public:  s.Public(),
		All:     s.All(),
	}, nil
}

// ObjectStringsFor loads an object and renders it. A missing handle
// yields nil without error.
func ObjectStringsFor(ctx context.Context, db gramps.Database, b Builder, class gramps.Class, handle string) (*ObjectStrings, error) {
	obj, err := db.Object(ctx, class, handle)
	if errors.Is(err, gramps.ErrHandleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeDatabaseRead,
			fmt.Sprintf("failed to load %s %s", class, handle), err)
	}
	return Strings(ctx, db, b, obj)
}
