package docstore

import (
	"fmt"
	"net/url"
	"path/filepath"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// Backend names a storage backend.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBleve  Backend = "bleve"
	BackendSQLite Backend = "sqlite"
)

// Location is a parsed index URI.
type Location struct {
	Backend Backend
	// Path is a directory for bleve and a database file for sqlite.
	Path string
}

// ParseURI parses an index URI: "" or "memory://", "bleve:///dir" or
// "sqlite:///path/to/file.db".
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{Backend: BackendMemory}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, invalidURI(uri, err)
	}
	path := u.Host + u.Path
	switch Backend(u.Scheme) {
	case BackendMemory:
		return Location{Backend: BackendMemory}, nil
	case BackendBleve, BackendSQLite:
		if path == "" {
			return Location{}, invalidURI(uri, fmt.Errorf("missing path"))
		}
		return Location{Backend: Backend(u.Scheme), Path: filepath.Clean(path)}, nil
	}
	return Location{}, invalidURI(uri, fmt.Errorf("unknown scheme %q", u.Scheme))
}

func invalidURI(uri string, cause error) error {
	return gerrors.New(gerrors.ErrCodeInvalidIndexURI, fmt.Sprintf("invalid index URI %q", uri), cause).
		WithSuggestion("use memory://, bleve:///path/to/dir or sqlite:///path/to/index.db")
}

// Open opens the collection name at the location given by uri. Semantic
// collections need an embedder; with a bleve location their vectors are
// kept in vectors.db inside the directory.
func Open(uri, name string, kind Kind, embedder Embedder) (Collection, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	switch {
	case kind == KindSemantic:
		path := loc.Path
		if loc.Backend == BackendBleve {
			path = filepath.Join(loc.Path, "vectors.db")
		}
		c, err := NewVectorCollection(path, name, embedder)
		if err != nil {
			return nil, err
		}
		return c, nil
	case loc.Backend == BackendSQLite:
		c, err := NewFTSCollection(loc.Path, name)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		c, err := NewBleveCollection(loc.Path, name)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
