// Package gramps defines the genealogy object model consumed by the
// search index, the Database contract of the authoritative store, and
// two implementations of it: an in-memory store and a reader for the
// Gramps SQLite schema.
package gramps

import (
	"strings"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// Class is the name of a primary Gramps object class.
type Class string

const (
	ClassPerson     Class = "Person"
	ClassFamily     Class = "Family"
	ClassSource     Class = "Source"
	ClassCitation   Class = "Citation"
	ClassEvent      Class = "Event"
	ClassMedia      Class = "Media"
	ClassPlace      Class = "Place"
	ClassRepository Class = "Repository"
	ClassNote       Class = "Note"
	ClassTag        Class = "Tag"
)

// Classes lists every primary class in enumeration order.
var Classes = []Class{
	ClassPerson,
	ClassFamily,
	ClassSource,
	ClassCitation,
	ClassEvent,
	ClassMedia,
	ClassPlace,
	ClassRepository,
	ClassNote,
	ClassTag,
}

// Lower returns the lower-case form used in document ids and metadata.
func (c Class) Lower() string {
	return strings.ToLower(string(c))
}

// Table returns the SQLite table holding objects of this class.
func (c Class) Table() string {
	return c.Lower()
}

// Valid reports whether c is one of the primary classes.
func (c Class) Valid() bool {
	for _, k := range Classes {
		if k == c {
			return true
		}
	}
	return false
}

// ParseClass accepts a class name in any casing ("person", "Person").
func ParseClass(s string) (Class, error) {
	for _, c := range Classes {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", gerrors.New(gerrors.ErrCodeUnknownClass, "unknown object class: "+s, nil)
}
