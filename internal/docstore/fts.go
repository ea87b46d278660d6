package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// FTSCollection is a keyword collection backed by SQLite FTS5. Several
// collections may share one database file; each gets its own table
// pair.
type FTSCollection struct {
	mu     sync.RWMutex
	db     *sql.DB
	name   string
	docs   string
	fts    string
	closed bool
}

var _ Collection = (*FTSCollection)(nil)

// NewFTSCollection opens the collection name in the database at path,
// or in a private in-memory database when path is empty.
func NewFTSCollection(path, name string) (*FTSCollection, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	id, err := collectionID(db, name)
	if err != nil {
		_ = db.Close()
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to register collection %s", name), err)
	}

	c := &FTSCollection{
		db:   db,
		name: name,
		docs: fmt.Sprintf("docs_%d", id),
		fts:  fmt.Sprintf("fts_%d", id),
	}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to initialize schema", err)
	}
	return c, nil
}

// initSchema creates the table pair. The FTS rowid of a document equals
// the doc_key of its docs row.
func (c *FTSCollection) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		doc_key INTEGER PRIMARY KEY,
		id      TEXT NOT NULL UNIQUE,
		type    TEXT NOT NULL,
		handle  TEXT NOT NULL,
		change  INTEGER NOT NULL,
		content TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS %[1]s_type ON %[1]s(type);
	CREATE INDEX IF NOT EXISTS %[1]s_change ON %[1]s(change);

	CREATE VIRTUAL TABLE IF NOT EXISTS %[2]s USING fts5(
		content,
		tokenize='unicode61 remove_diacritics 2'
	);
	`, c.docs, c.fts)
	_, err := c.db.Exec(schema)
	return err
}

func (c *FTSCollection) Name() string { return c.name }

// Add replaces documents by ID in one transaction.
func (c *FTSCollection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed(c.name)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s(id, type, handle, change, content) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, handle = excluded.handle,
			change = excluded.change, content = excluded.content
		RETURNING doc_key`, c.docs))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer upsert.Close()
	// FTS5 tables do not support REPLACE
	del, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, c.fts))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(rowid, content) VALUES (?, ?)`, c.fts))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer ins.Close()

	for _, d := range docs {
		var key int64
		if err := upsert.QueryRowContext(ctx, d.ID, d.Metadata.Type, d.Metadata.Handle, d.Metadata.Change, d.Content).Scan(&key); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to store document %s", d.ID), err)
		}
		if _, err := del.ExecContext(ctx, key); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to replace document %s", d.ID), err)
		}
		if _, err := ins.ExecContext(ctx, key, d.Content); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to index document %s", d.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to commit documents", err)
	}
	return nil
}

func (c *FTSCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed(c.name)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	delDoc, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? RETURNING doc_key`, c.docs))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer delDoc.Close()
	delFTS, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, c.fts))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer delFTS.Close()

	for _, id := range ids {
		var key int64
		err := delDoc.QueryRowContext(ctx, id).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to delete document %s", id), err)
		}
		if _, err := delFTS.ExecContext(ctx, key); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to delete document %s", id), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to commit deletion", err)
	}
	return nil
}

func (c *FTSCollection) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed(c.name)
	}
	for _, table := range []string{c.fts, c.docs} {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to clear collection %s", c.name), err)
		}
	}
	return nil
}

func (c *FTSCollection) Get(ctx context.Context, req GetRequest) (*Page, error) {
	fields, err := checkRequest(req.Where, req.OrderBy, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errClosed(c.name)
	}

	cond, args := whereSQL(req.Where)
	where := ""
	if cond != "" {
		where = "WHERE " + cond
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s d %s`, c.docs, where)
	if err := c.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to count documents", err)
	}

	q := fmt.Sprintf(`SELECT d.id, d.type, d.handle, d.change, d.content FROM %s d %s ORDER BY %s LIMIT ? OFFSET ?`,
		c.docs, where, orderSQL(fields, "d.id"))
	hits, err := c.collect(ctx, q, false, append(args, sqlLimit(req.Limit), req.Offset)...)
	if err != nil {
		return nil, err
	}
	return &Page{Total: total, Results: hits}, nil
}

func (c *FTSCollection) Query(ctx context.Context, req QueryRequest) (*Page, error) {
	fields, err := checkRequest(req.Where, req.OrderBy, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	match := matchExpression(req.Text)
	if match == "" {
		return &Page{Results: []Hit{}}, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errClosed(c.name)
	}

	cond, args := whereSQL(req.Where)
	if cond != "" {
		cond = " AND " + cond
	}
	args = append([]any{match}, args...)
	from := fmt.Sprintf(`FROM %[1]s JOIN %[2]s d ON d.doc_key = %[1]s.rowid WHERE %[1]s MATCH ?%[3]s`, c.fts, c.docs, cond)

	var total int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to count matches", err)
	}

	// bm25() is negative; lower is better
	q := fmt.Sprintf(`SELECT d.id, d.type, d.handle, d.change, d.content, -bm25(%s) AS score %s ORDER BY %s LIMIT ? OFFSET ?`,
		c.fts, from, orderSQL(fields, "score DESC, d.id"))
	hits, err := c.collect(ctx, q, true, append(args, sqlLimit(req.Limit), req.Offset)...)
	if err != nil {
		return nil, err
	}
	return &Page{Total: total, Results: hits}, nil
}

func (c *FTSCollection) Count(ctx context.Context, where *Where) (int, error) {
	page, err := c.Get(ctx, GetRequest{Limit: 1, Where: where})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

func (c *FTSCollection) collect(ctx context.Context, q string, withScore bool, args ...any) ([]Hit, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, fmt.Sprintf("search in %s failed", c.name), err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		h, err := scanHit(rows, withScore)
		if err != nil {
			return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to scan result", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to read results", err)
	}
	return hits, nil
}

// Close closes the database. It is safe to call twice.
func (c *FTSCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

// matchExpression turns free text into an FTS5 query matching any of
// its words. Words are quoted so FTS5 syntax in user input is inert.
func matchExpression(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+w+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// checkRequest validates the shared request options.
func checkRequest(where *Where, orderBy []string, limit, offset int) ([]sortField, error) {
	if err := where.validate(); err != nil {
		return nil, err
	}
	if err := validateRange(limit, offset); err != nil {
		return nil, err
	}
	return parseOrderBy(orderBy)
}
