package index

import (
	"context"
	"strings"
	"time"

	"github.com/gramps-project/grampsindex/internal/docstore"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/gramps"
)

// SearchRequest is one page of a search.
type SearchRequest struct {
	// Query is the search text; "" or "*" lists documents unranked.
	Query    string
	Page     int
	PageSize int
	// IncludePrivate searches the full collection instead of the public one.
	IncludePrivate bool
	// Sort lists fields (change, type, handle, id), "-" prefix for descending.
	Sort []string
	// ObjectTypes restricts hits to these classes, in any casing.
	ObjectTypes []string
	// ChangeOp is one of > < >= <=, applied with ChangeValue.
	ChangeOp    string
	ChangeValue *int64
	// IncludeContent adds the document text to every hit.
	IncludeContent bool
}

// SearchHit is one result.
type SearchHit struct {
	Handle     string  `json:"handle"`
	ObjectType string  `json:"object_type"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Content    string  `json:"content,omitempty"`
}

// SearchResult is one page of hits plus the total number of matches.
type SearchResult struct {
	Total int         `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

func (req SearchRequest) where() (*docstore.Where, error) {
	var w docstore.Where
	for _, t := range req.ObjectTypes {
		class, err := gramps.ParseClass(strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}
		w.Types = append(w.Types, class.Lower())
	}
	if req.ChangeOp != "" && req.ChangeValue != nil {
		op, err := docstore.ParseChangeOp(req.ChangeOp)
		if err != nil {
			return nil, err
		}
		w.Change = &docstore.ChangeFilter{Op: op, Value: *req.ChangeValue}
	}
	if len(w.Types) == 0 && w.Change == nil {
		return nil, nil
	}
	return &w, nil
}

// Search returns one page of hits. Ranks continue across pages.
func (ix *Indexer) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.Page < 1 || req.PageSize < 1 {
		return nil, gerrors.ValidationError("page and pagesize must be at least 1", nil)
	}
	where, err := req.where()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		SearchDuration.WithLabelValues(ix.tree, string(ix.flavour)).Observe(time.Since(start).Seconds())
	}()

	offset := (req.Page - 1) * req.PageSize
	coll := ix.collection(req.IncludePrivate)
	query := strings.TrimSpace(req.Query)

	var page *docstore.Page
	if query == "" || query == "*" {
		page, err = coll.Get(ctx, docstore.GetRequest{Limit: req.PageSize, Offset: offset, OrderBy: req.Sort, Where: where})
	} else {
		page, err = coll.Query(ctx, docstore.QueryRequest{Text: query, Limit: req.PageSize, Offset: offset, OrderBy: req.Sort, Where: where})
	}
	if err != nil {
		ix.recordError("search")
		if _, ok := gerrors.As(err); ok {
			return nil, err
		}
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "search failed", err)
	}

	res := &SearchResult{Total: page.Total, Hits: make([]SearchHit, len(page.Results))}
	for i, h := range page.Results {
		hit := SearchHit{
			Handle:     h.Metadata.Handle,
			ObjectType: h.Metadata.Type,
			Score:      h.Score,
			Rank:       offset + i,
		}
		if req.IncludeContent {
			hit.Content = h.Content
		}
		res.Hits[i] = hit
	}
	return res, nil
}

// Count returns the number of documents in the full or public collection.
func (ix *Indexer) Count(ctx context.Context, includePrivate bool) (int, error) {
	return ix.collection(includePrivate).Count(ctx, nil)
}
