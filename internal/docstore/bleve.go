package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// TextAnalyzerName is the analyzer used for document content.
const TextAnalyzerName = "genealogy_text"

// BleveCollection is a keyword collection backed by a Bleve index.
type BleveCollection struct {
	mu     sync.RWMutex
	name   string
	path   string
	index  bleve.Index
	closed bool
}

var _ Collection = (*BleveCollection)(nil)

// validateIndexIntegrity checks that an existing index directory has
// readable metadata. A missing directory is valid.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return err == bleve.ErrorIndexMetaCorrupt ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// NewBleveCollection opens or creates the collection name under dir.
// An empty dir creates an in-memory collection. A corrupted index is
// cleared and recreated; the next reindex repopulates it.
func NewBleveCollection(dir, name string) (*BleveCollection, error) {
	m, err := newIndexMapping()
	if err != nil {
		return nil, gerrors.InternalError("failed to create index mapping", err)
	}

	var idx bleve.Index
	var path string
	if dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, gerrors.IOError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		path = filepath.Join(dir, name+".bleve")

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bleve_collection_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, gerrors.New(gerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index at %s is corrupted and cannot be removed", path), removeErr)
			}
		}

		idx, err = bleve.Open(path)
		switch {
		case err == bleve.ErrorIndexPathDoesNotExist:
			idx, err = bleve.New(path, m)
		case isCorruptionError(err):
			slog.Warn("bleve_collection_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, gerrors.New(gerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index at %s is corrupted and cannot be removed", path), removeErr)
			}
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to open collection %s", name), err)
	}

	return &BleveCollection{name: name, path: path, index: idx}, nil
}

func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(TextAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	content := bleve.NewTextFieldMapping()
	content.Analyzer = TextAnalyzerName
	keyword := bleve.NewKeywordFieldMapping()
	numeric := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("handle", keyword)
	doc.AddFieldMappingsAt("change", numeric)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = TextAnalyzerName
	return im, nil
}

func (b *BleveCollection) Name() string { return b.name }

// Add indexes docs in a single batch.
func (b *BleveCollection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed(b.name)
	}

	batch := b.index.NewBatch()
	for _, d := range docs {
		fields := map[string]any{
			"content": d.Content,
			"type":    d.Metadata.Type,
			"handle":  d.Metadata.Handle,
			"change":  float64(d.Metadata.Change),
		}
		if err := batch.Index(d.ID, fields); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to index document %s", d.ID), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to execute batch", err)
	}
	return nil
}

func (b *BleveCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed(b.name)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to delete documents", err)
	}
	return nil
}

// DeleteAll removes every document.
func (b *BleveCollection) DeleteAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed(b.name)
	}

	count, err := b.index.DocCount()
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to count documents", err)
	}
	if count == 0 {
		return nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to list documents", err)
	}
	batch := b.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to delete documents", err)
	}
	return nil
}

func (b *BleveCollection) Get(ctx context.Context, req GetRequest) (*Page, error) {
	return b.search(ctx, bleve.NewMatchAllQuery(), req.Where, req.OrderBy, req.Limit, req.Offset, []string{"_id"})
}

func (b *BleveCollection) Query(ctx context.Context, req QueryRequest) (*Page, error) {
	text := bleve.NewMatchQuery(req.Text)
	text.SetField("content")
	return b.search(ctx, text, req.Where, req.OrderBy, req.Limit, req.Offset, []string{"-_score", "_id"})
}

func (b *BleveCollection) Count(ctx context.Context, where *Where) (int, error) {
	page, err := b.search(ctx, bleve.NewMatchAllQuery(), where, nil, -1, 0, nil)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// search runs q restricted by where. A negative limit returns only the
// total.
func (b *BleveCollection) search(ctx context.Context, q query.Query, where *Where, orderBy []string,
	limit, offset int, defaultSort []string) (*Page, error) {
	if err := where.validate(); err != nil {
		return nil, err
	}
	fields, err := parseOrderBy(orderBy)
	if err != nil {
		return nil, err
	}
	if limit >= 0 {
		if err := validateRange(limit, offset); err != nil {
			return nil, err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed(b.name)
	}

	size := limit
	switch {
	case limit < 0:
		size = 0
	case limit == 0:
		count, err := b.index.DocCount()
		if err != nil {
			return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to count documents", err)
		}
		size = int(count)
	}

	sr := bleve.NewSearchRequestOptions(withWhere(q, where), size, offset, false)
	sr.Fields = []string{"content", "type", "handle", "change"}
	if len(fields) > 0 {
		sortBy := make([]string, 0, len(fields)+1)
		for _, f := range fields {
			name := f.Field
			if name == "id" {
				name = "_id"
			}
			if f.Desc {
				name = "-" + name
			}
			sortBy = append(sortBy, name)
		}
		sr.SortBy(append(sortBy, "_id"))
	} else if defaultSort != nil {
		sr.SortBy(defaultSort)
	}

	res, err := b.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, fmt.Sprintf("search in %s failed", b.name), err)
	}

	page := &Page{Total: int(res.Total), Results: make([]Hit, 0, len(res.Hits))}
	if limit < 0 {
		return page, nil
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Content = v
		}
		if v, ok := h.Fields["type"].(string); ok {
			hit.Metadata.Type = v
		}
		if v, ok := h.Fields["handle"].(string); ok {
			hit.Metadata.Handle = v
		}
		if v, ok := h.Fields["change"].(float64); ok {
			hit.Metadata.Change = int64(v)
		}
		page.Results = append(page.Results, hit)
	}
	return page, nil
}

func withWhere(q query.Query, where *Where) query.Query {
	if where == nil || (len(where.Types) == 0 && where.Change == nil) {
		return q
	}
	clauses := []query.Query{q}
	if len(where.Types) > 0 {
		types := make([]query.Query, 0, len(where.Types))
		for _, t := range where.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			types = append(types, tq)
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(types...))
	}
	if c := where.Change; c != nil {
		v := float64(c.Value)
		inclusive := c.Op == OpGTE || c.Op == OpLTE
		var rq *query.NumericRangeQuery
		if c.Op == OpGT || c.Op == OpGTE {
			rq = bleve.NewNumericRangeInclusiveQuery(&v, nil, &inclusive, nil)
		} else {
			rq = bleve.NewNumericRangeInclusiveQuery(nil, &v, nil, &inclusive)
		}
		rq.SetField("change")
		clauses = append(clauses, rq)
	}
	return bleve.NewConjunctionQuery(clauses...)
}

// Close closes the underlying index. It is safe to call twice.
func (b *BleveCollection) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func errClosed(name string) error {
	return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("collection %s is closed", name), nil)
}
