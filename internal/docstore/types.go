// Package docstore provides the document collections the indexers write
// to: keyword collections backed by Bleve or SQLite FTS5 and semantic
// collections backed by an HNSW graph over SQLite-stored vectors.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// Kind selects the search flavour of a collection.
type Kind string

const (
	KindKeyword  Kind = "keyword"
	KindSemantic Kind = "semantic"
)

// Metadata is stored alongside every document and used for filtering
// and sorting.
type Metadata struct {
	// Type is the lower-case object class.
	Type   string
	Handle string
	Change int64
}

// Document is a unit of indexed text.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Collection is a named set of documents addressed by ID.
type Collection interface {
	Name() string
	// Add inserts or replaces documents by ID.
	Add(ctx context.Context, docs []Document) error
	// Delete removes documents; unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
	// Get lists documents without relevance ranking. A zero limit
	// returns every matching document.
	Get(ctx context.Context, req GetRequest) (*Page, error)
	// Query ranks documents by relevance to a text.
	Query(ctx context.Context, req QueryRequest) (*Page, error)
	Count(ctx context.Context, where *Where) (int, error)
	Close() error
}

// ChangeOp compares the change timestamp of a document.
type ChangeOp string

const (
	OpGT  ChangeOp = "$gt"
	OpLT  ChangeOp = "$lt"
	OpGTE ChangeOp = "$gte"
	OpLTE ChangeOp = "$lte"
)

// ParseChangeOp maps a comparison operator (>, <, >=, <=) to a ChangeOp.
func ParseChangeOp(s string) (ChangeOp, error) {
	switch s {
	case ">":
		return OpGT, nil
	case "<":
		return OpLT, nil
	case ">=":
		return OpGTE, nil
	case "<=":
		return OpLTE, nil
	}
	return "", gerrors.New(gerrors.ErrCodeInvalidFilter,
		fmt.Sprintf("invalid operator for change condition: %q", s), nil).
		WithSuggestion("use one of >, <, >=, <=")
}

// ChangeFilter restricts documents by change timestamp.
type ChangeFilter struct {
	Op    ChangeOp
	Value int64
}

// Match reports whether change satisfies the filter.
func (f ChangeFilter) Match(change int64) bool {
	switch f.Op {
	case OpGT:
		return change > f.Value
	case OpLT:
		return change < f.Value
	case OpGTE:
		return change >= f.Value
	case OpLTE:
		return change <= f.Value
	}
	return false
}

func (f ChangeFilter) sqlOp() string {
	switch f.Op {
	case OpGT:
		return ">"
	case OpLT:
		return "<"
	case OpGTE:
		return ">="
	default:
		return "<="
	}
}

// Where filters documents by metadata. A nil Where matches everything.
type Where struct {
	// Types restricts to the given lower-case classes when non-empty.
	Types  []string
	Change *ChangeFilter
}

// Match reports whether m satisfies the filter.
func (w *Where) Match(m Metadata) bool {
	if w == nil {
		return true
	}
	if len(w.Types) > 0 {
		found := false
		for _, t := range w.Types {
			if t == m.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if w.Change != nil && !w.Change.Match(m.Change) {
		return false
	}
	return true
}

// validate checks the filter operator.
func (w *Where) validate() error {
	if w == nil || w.Change == nil {
		return nil
	}
	switch w.Change.Op {
	case OpGT, OpLT, OpGTE, OpLTE:
		return nil
	}
	return gerrors.New(gerrors.ErrCodeInvalidFilter, fmt.Sprintf("invalid change operator %q", w.Change.Op), nil)
}

// GetRequest lists documents.
type GetRequest struct {
	Limit   int
	Offset  int
	OrderBy []string
	Where   *Where
}

// QueryRequest ranks documents against Text.
type QueryRequest struct {
	Text    string
	Limit   int
	Offset  int
	OrderBy []string
	Where   *Where
}

// Hit is a document returned by Get or Query. Score is only meaningful
// for Query.
type Hit struct {
	ID       string
	Content  string
	Metadata Metadata
	Score    float64
}

// Page is one page of results plus the total number of matches.
type Page struct {
	Total   int
	Results []Hit
}

// sortField is one parsed order-by entry.
type sortField struct {
	Field string
	Desc  bool
}

var sortableFields = map[string]bool{
	"change": true,
	"type":   true,
	"handle": true,
	"id":     true,
}

// parseOrderBy validates order-by entries of the form "field" or
// "-field".
func parseOrderBy(orderBy []string) ([]sortField, error) {
	fields := make([]sortField, 0, len(orderBy))
	for _, raw := range orderBy {
		f := sortField{Field: strings.TrimSpace(raw)}
		if strings.HasPrefix(f.Field, "-") {
			f.Desc = true
			f.Field = f.Field[1:]
		}
		if !sortableFields[f.Field] {
			return nil, gerrors.New(gerrors.ErrCodeInvalidQuery,
				fmt.Sprintf("cannot sort by %q", raw), nil).
				WithSuggestion("sort by change, type, handle or id, prefixed with - for descending order")
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func validateRange(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return gerrors.ValidationError(fmt.Sprintf("invalid limit %d or offset %d", limit, offset), nil)
	}
	return nil
}

// sortHits orders hits by fields, breaking ties by ID.
func sortHits(hits []Hit, fields []sortField) {
	sort.SliceStable(hits, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(hits[i], hits[j], f.Field)
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return hits[i].ID < hits[j].ID
	})
}

func compareField(a, b Hit, field string) int {
	switch field {
	case "change":
		switch {
		case a.Metadata.Change < b.Metadata.Change:
			return -1
		case a.Metadata.Change > b.Metadata.Change:
			return 1
		}
		return 0
	case "type":
		return strings.Compare(a.Metadata.Type, b.Metadata.Type)
	case "handle":
		return strings.Compare(a.Metadata.Handle, b.Metadata.Handle)
	default:
		return strings.Compare(a.ID, b.ID)
	}
}

// paginate returns the hits in [offset, offset+limit); a zero limit
// means no upper bound.
func paginate(hits []Hit, limit, offset int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}
