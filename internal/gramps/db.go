package gramps

import (
	"context"
	"errors"
	"fmt"
)

// ErrHandleNotFound is returned when a handle does not resolve to an
// object of the requested class.
var ErrHandleNotFound = errors.New("handle not found")

// Ref identifies an object by class and handle.
type Ref struct {
	Class  Class
	Handle string
}

// Database is the read contract of the authoritative genealogy store.
// Implementations are not required to be safe for concurrent use; each
// operation of the index engine opens its own Database through an Opener.
type Database interface {
	// Count returns the number of objects of class.
	Count(ctx context.Context, class Class) (int, error)
	// Handles returns every handle of class.
	Handles(ctx context.Context, class Class) ([]string, error)
	// Object loads one object. Unknown handles yield ErrHandleNotFound.
	Object(ctx context.Context, class Class, handle string) (Object, error)
	// Timestamps returns handle -> change for every object of class
	// without decoding full objects.
	Timestamps(ctx context.Context, class Class) (map[string]int64, error)
	// Backlinks returns the objects referencing handle, optionally
	// restricted to the given classes.
	Backlinks(ctx context.Context, handle string, classes ...Class) ([]Ref, error)
	Close() error
}

// Opener opens a fresh Database handle.
type Opener interface {
	Open(ctx context.Context) (Database, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Database, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context) (Database, error) {
	return f(ctx)
}

// TotalObjects sums Count over all classes.
func TotalObjects(ctx context.Context, db Database) (int, error) {
	total := 0
	for _, c := range Classes {
		n, err := db.Count(ctx, c)
		if err != nil {
			return 0, fmt.Errorf("failed to count %s objects: %w", c.Lower(), err)
		}
		total += n
	}
	return total, nil
}

func getTyped[T Object](ctx context.Context, db Database, class Class, handle string) (T, error) {
	var zero T
	obj, err := db.Object(ctx, class, handle)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%s %s: unexpected type %T", class.Lower(), handle, obj)
	}
	return t, nil
}

func GetPerson(ctx context.Context, db Database, handle string) (*Person, error) {
	return getTyped[*Person](ctx, db, ClassPerson, handle)
}

func GetFamily(ctx context.Context, db Database, handle string) (*Family, error) {
	return getTyped[*Family](ctx, db, ClassFamily, handle)
}

func GetEvent(ctx context.Context, db Database, handle string) (*Event, error) {
	return getTyped[*Event](ctx, db, ClassEvent, handle)
}

func GetPlace(ctx context.Context, db Database, handle string) (*Place, error) {
	return getTyped[*Place](ctx, db, ClassPlace, handle)
}

func GetSource(ctx context.Context, db Database, handle string) (*Source, error) {
	return getTyped[*Source](ctx, db, ClassSource, handle)
}

func GetRepository(ctx context.Context, db Database, handle string) (*Repository, error) {
	return getTyped[*Repository](ctx, db, ClassRepository, handle)
}

func GetTag(ctx context.Context, db Database, handle string) (*Tag, error) {
	return getTyped[*Tag](ctx, db, ClassTag, handle)
}

// PersonParticipant is a person taking part in an event.
type PersonParticipant struct {
	Role   string
	Person *Person
}

// FamilyParticipant is a family taking part in an event.
type FamilyParticipant struct {
	Role   string
	Family *Family
}

// Participants lists who took part in an event.
type Participants struct {
	People   []PersonParticipant
	Families []FamilyParticipant
}

// EventParticipants resolves the people and families referencing an
// event, with the role of each reference. An object referencing the
// event several times is listed once per reference.
func EventParticipants(ctx context.Context, db Database, eventHandle string) (*Participants, error) {
	refs, err := db.Backlinks(ctx, eventHandle, ClassPerson, ClassFamily)
	if err != nil {
		return nil, fmt.Errorf("failed to load backlinks of event %s: %w", eventHandle, err)
	}

	out := &Participants{}
	for _, ref := range refs {
		switch ref.Class {
		case ClassPerson:
			person, err := GetPerson(ctx, db, ref.Handle)
			if errors.Is(err, ErrHandleNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, er := range person.EventRefs {
				if er.Ref == eventHandle {
					out.People = append(out.People, PersonParticipant{Role: er.Role, Person: person})
				}
			}
		case ClassFamily:
			family, err := GetFamily(ctx, db, ref.Handle)
			if errors.Is(err, ErrHandleNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, er := range family.EventRefs {
				if er.Ref == eventHandle {
					out.Families = append(out.Families, FamilyParticipant{Role: er.Role, Family: family})
				}
			}
		}
	}
	return out, nil
}

// PlaceLevel is one entry of a place hierarchy.
type PlaceLevel struct {
	Name string
	Type string
}

// LocationList returns the place followed by its enclosing places,
// following the first enclosing reference at each level.
func LocationList(ctx context.Context, db Database, place *Place) ([]PlaceLevel, error) {
	levels := []PlaceLevel{{Name: place.DisplayName(), Type: place.Type}}
	seen := map[string]bool{place.Handle: true}
	current := place
	for len(current.PlaceRefs) > 0 {
		parentHandle := current.PlaceRefs[0].Ref
		if seen[parentHandle] {
			break
		}
		seen[parentHandle] = true
		parent, err := GetPlace(ctx, db, parentHandle)
		if errors.Is(err, ErrHandleNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		levels = append(levels, PlaceLevel{Name: parent.DisplayName(), Type: parent.Type})
		current = parent
	}
	return levels, nil
}

// DisplayName returns the primary place name, falling back to the title.
func (p *Place) DisplayName() string {
	if p.Name.Value == "" {
		return p.Title
	}
	return p.Name.Value
}
