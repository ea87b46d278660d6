package docstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// Embedder turns texts into vectors; output i belongs to input i.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// VectorCollection is a semantic collection. Documents and their
// vectors live in SQLite; an in-memory HNSW graph over the vectors is
// rebuilt on open and updated on every write.
type VectorCollection struct {
	mu       sync.RWMutex
	db       *sql.DB
	id       int64
	name     string
	table    string
	embedder Embedder

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]Metadata
	nextKey uint64

	// stale is set when the stored vectors were produced by another
	// model; queries fail until DeleteAll.
	stale  bool
	closed bool
}

var _ Collection = (*VectorCollection)(nil)

// NewVectorCollection opens the collection name in the database at
// path, or in a private in-memory database when path is empty.
func NewVectorCollection(path, name string, embedder Embedder) (*VectorCollection, error) {
	if embedder == nil {
		return nil, gerrors.New(gerrors.ErrCodeSemanticDisabled, "semantic collection requires an embedding model", nil)
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	id, err := collectionID(db, name)
	if err != nil {
		_ = db.Close()
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to register collection %s", name), err)
	}

	v := &VectorCollection{
		db:       db,
		id:       id,
		name:     name,
		table:    fmt.Sprintf("vec_%d", id),
		embedder: embedder,
	}
	if err := v.initSchema(); err != nil {
		_ = db.Close()
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to initialize schema", err)
	}
	if err := v.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return v, nil
}

func (v *VectorCollection) initSchema() error {
	_, err := v.db.Exec(fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id      TEXT PRIMARY KEY,
		type    TEXT NOT NULL,
		handle  TEXT NOT NULL,
		change  INTEGER NOT NULL,
		content TEXT NOT NULL,
		vector  BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS %[1]s_type ON %[1]s(type);
	CREATE TABLE IF NOT EXISTS vector_models (
		collection_id INTEGER PRIMARY KEY,
		model         TEXT NOT NULL,
		dimensions    INTEGER NOT NULL
	);
	`, v.table))
	return err
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// load reads the stored model and builds the graph from the stored
// vectors.
func (v *VectorCollection) load() error {
	v.resetGraph()

	var model string
	var dims int
	err := v.db.QueryRow(`SELECT model, dimensions FROM vector_models WHERE collection_id = ?`, v.id).Scan(&model, &dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return v.recordModel()
	case err != nil:
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to read vector model", err)
	}
	if model != v.embedder.ModelName() || dims != v.embedder.Dimensions() {
		slog.Warn("vector_collection_model_changed",
			slog.String("collection", v.name),
			slog.String("stored_model", model),
			slog.String("model", v.embedder.ModelName()))
		v.stale = true
		return nil
	}
	return v.rebuild(context.Background())
}

func (v *VectorCollection) resetGraph() {
	v.graph = newGraph()
	v.idMap = make(map[string]uint64)
	v.keyMap = make(map[uint64]string)
	v.meta = make(map[string]Metadata)
	v.nextKey = 0
}

// rebuild replaces the graph with one holding only the stored vectors.
// The current graph is kept when reading fails.
func (v *VectorCollection) rebuild(ctx context.Context) error {
	dims := v.embedder.Dimensions()
	rows, err := v.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, type, handle, change, vector FROM %s ORDER BY id`, v.table))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to load vectors", err)
	}
	defer rows.Close()

	type entry struct {
		id  string
		m   Metadata
		vec []float32
	}
	var entries []entry
	for rows.Next() {
		var e entry
		var blob []byte
		if err := rows.Scan(&e.id, &e.m.Type, &e.m.Handle, &e.m.Change, &blob); err != nil {
			return gerrors.New(gerrors.ErrCodeCorruptIndex, "failed to read vector row", err)
		}
		e.vec = decodeVector(blob)
		if len(e.vec) != dims {
			return gerrors.New(gerrors.ErrCodeCorruptIndex, fmt.Sprintf("vector of %s has %d dimensions, want %d", e.id, len(e.vec), dims), nil)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to load vectors", err)
	}

	v.resetGraph()
	for _, e := range entries {
		v.insertNode(e.id, e.m, e.vec)
	}
	return nil
}

// maxOrphanShare is the share of graph nodes that may belong to replaced
// or deleted documents before the graph is rebuilt.
const maxOrphanShare = 0.25

// compact rebuilds the graph when too many of its nodes are orphans.
// A failed rebuild keeps the current graph, which stays correct, only
// larger.
func (v *VectorCollection) compact(ctx context.Context) {
	nodes := v.graph.Len()
	orphans := nodes - len(v.idMap)
	if v.stale || orphans == 0 || float64(orphans) <= maxOrphanShare*float64(nodes) {
		return
	}
	if err := v.rebuild(ctx); err != nil {
		slog.Warn("vector_graph_compaction_failed",
			slog.String("collection", v.name),
			slog.String("error", err.Error()))
		return
	}
	slog.Debug("vector_graph_compacted",
		slog.String("collection", v.name),
		slog.Int("nodes_before", nodes),
		slog.Int("nodes", v.graph.Len()))
}

func (v *VectorCollection) recordModel() error {
	_, err := v.db.Exec(`INSERT OR REPLACE INTO vector_models(collection_id, model, dimensions) VALUES (?, ?, ?)`,
		v.id, v.embedder.ModelName(), v.embedder.Dimensions())
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to record vector model", err)
	}
	return nil
}

// insertNode adds vec under a fresh key. A previous node for id stays in
// the graph as an orphan until the next compaction.
func (v *VectorCollection) insertNode(id string, m Metadata, vec []float32) {
	v.forget(id)
	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id
	v.meta[id] = m
}

func (v *VectorCollection) forget(id string) {
	if key, ok := v.idMap[id]; ok {
		delete(v.keyMap, key)
		delete(v.idMap, id)
		delete(v.meta, id)
	}
}

func (v *VectorCollection) Name() string { return v.name }

// Add embeds the documents and stores them with their vectors.
func (v *VectorCollection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(docs) {
		return gerrors.New(gerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(docs)), nil)
	}
	dims := v.embedder.Dimensions()
	for i, vec := range vectors {
		if len(vec) != dims {
			return gerrors.New(gerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector for %s has %d dimensions, want %d", docs[i].ID, len(vec), dims), nil)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errClosed(v.name)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %s(id, type, handle, change, content, vector) VALUES (?, ?, ?, ?, ?, ?)`, v.table))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer stmt.Close()

	normalized := make([][]float32, len(vectors))
	for i, d := range docs {
		normalized[i] = normalize(vectors[i])
		if _, err := stmt.ExecContext(ctx, d.ID, d.Metadata.Type, d.Metadata.Handle, d.Metadata.Change,
			d.Content, encodeVector(normalized[i])); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to store document %s", d.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to commit documents", err)
	}

	if !v.stale {
		for i, d := range docs {
			v.insertNode(d.ID, d.Metadata, normalized[i])
		}
		v.compact(ctx)
	}
	return nil
}

func (v *VectorCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errClosed(v.name)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, v.table))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to prepare statement", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to delete document %s", id), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, "failed to commit deletion", err)
	}
	for _, id := range ids {
		v.forget(id)
	}
	v.compact(ctx)
	return nil
}

// DeleteAll removes every document and adopts the current embedding
// model.
func (v *VectorCollection) DeleteAll(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errClosed(v.name)
	}
	if _, err := v.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, v.table)); err != nil {
		return gerrors.New(gerrors.ErrCodeStoreIO, fmt.Sprintf("failed to clear collection %s", v.name), err)
	}
	if err := v.recordModel(); err != nil {
		return err
	}
	v.resetGraph()
	v.stale = false
	return nil
}

func (v *VectorCollection) Get(ctx context.Context, req GetRequest) (*Page, error) {
	fields, err := checkRequest(req.Where, req.OrderBy, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, errClosed(v.name)
	}

	where, args := v.whereClause(req.Where)
	total, err := v.count(ctx, where, args)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT d.id, d.type, d.handle, d.change, d.content FROM %s d %s ORDER BY %s LIMIT ? OFFSET ?`,
		v.table, where, orderSQL(fields, "d.id"))
	rows, err := v.db.QueryContext(ctx, q, append(args, sqlLimit(req.Limit), req.Offset)...)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, fmt.Sprintf("listing %s failed", v.name), err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		h, err := scanHit(rows, false)
		if err != nil {
			return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to scan result", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to read results", err)
	}
	return &Page{Total: total, Results: hits}, nil
}

// Query ranks every document matching the filter by cosine similarity
// to the embedded text. With an explicit order the similarity is only
// reported, not used for ordering.
func (v *VectorCollection) Query(ctx context.Context, req QueryRequest) (*Page, error) {
	fields, err := checkRequest(req.Where, req.OrderBy, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	vectors, err := v.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) != v.embedder.Dimensions() {
		return nil, gerrors.New(gerrors.ErrCodeDimensionMismatch, "query embedding has unexpected shape", nil)
	}
	query := normalize(vectors[0])

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, errClosed(v.name)
	}
	if v.stale {
		return nil, gerrors.New(gerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("collection %s was built with a different embedding model", v.name), nil).
			WithSuggestion("run a full reindex")
	}

	where, args := v.whereClause(req.Where)
	total, err := v.count(ctx, where, args)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return v.queryOrdered(ctx, query, where, args, fields, req.Limit, req.Offset, total)
	}

	need := total
	if req.Limit > 0 && req.Offset+req.Limit < total {
		need = req.Offset + req.Limit
	}
	scored := v.nearest(query, req.Where, need)
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	hits := paginate(scored, req.Limit, req.Offset)
	if err := v.fillContent(ctx, hits); err != nil {
		return nil, err
	}
	return &Page{Total: total, Results: hits}, nil
}

// nearest searches the graph with a growing k until need documents
// pass the filter or the whole graph has been visited.
func (v *VectorCollection) nearest(query []float32, where *Where, need int) []Hit {
	if need <= 0 || v.graph.Len() == 0 {
		return []Hit{}
	}
	k := need * 2
	if k < 10 {
		k = 10
	}
	for {
		nodes := v.graph.Search(query, k)
		hits := make([]Hit, 0, need)
		for _, n := range nodes {
			id, ok := v.keyMap[n.Key]
			if !ok {
				continue
			}
			m := v.meta[id]
			if !where.Match(m) {
				continue
			}
			hits = append(hits, Hit{ID: id, Metadata: m, Score: similarity(query, n.Value)})
		}
		if len(hits) >= need || k >= v.graph.Len() {
			return hits
		}
		k *= 2
	}
}

func (v *VectorCollection) queryOrdered(ctx context.Context, query []float32, where string, args []any,
	fields []sortField, limit, offset, total int) (*Page, error) {
	q := fmt.Sprintf(`SELECT d.id, d.type, d.handle, d.change, d.content, d.vector FROM %s d %s ORDER BY %s LIMIT ? OFFSET ?`,
		v.table, where, orderSQL(fields, "d.id"))
	rows, err := v.db.QueryContext(ctx, q, append(args, sqlLimit(limit), offset)...)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, fmt.Sprintf("search in %s failed", v.name), err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var blob []byte
		if err := rows.Scan(&h.ID, &h.Metadata.Type, &h.Metadata.Handle, &h.Metadata.Change, &h.Content, &blob); err != nil {
			return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to scan result", err)
		}
		h.Score = similarity(query, decodeVector(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to read results", err)
	}
	return &Page{Total: total, Results: hits}, nil
}

func (v *VectorCollection) fillContent(ctx context.Context, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}
	stmt, err := v.db.PrepareContext(ctx, fmt.Sprintf(`SELECT content FROM %s WHERE id = ?`, v.table))
	if err != nil {
		return gerrors.New(gerrors.ErrCodeSearchFailed, "failed to prepare statement", err)
	}
	defer stmt.Close()
	for i := range hits {
		if err := stmt.QueryRowContext(ctx, hits[i].ID).Scan(&hits[i].Content); err != nil {
			return gerrors.New(gerrors.ErrCodeSearchFailed, fmt.Sprintf("failed to load document %s", hits[i].ID), err)
		}
	}
	return nil
}

func (v *VectorCollection) Count(ctx context.Context, where *Where) (int, error) {
	if err := where.validate(); err != nil {
		return 0, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return 0, errClosed(v.name)
	}
	clause, args := v.whereClause(where)
	return v.count(ctx, clause, args)
}

func (v *VectorCollection) whereClause(where *Where) (string, []any) {
	cond, args := whereSQL(where)
	if cond == "" {
		return "", nil
	}
	return "WHERE " + cond, args
}

func (v *VectorCollection) count(ctx context.Context, where string, args []any) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s d %s`, v.table, where), args...).Scan(&n)
	if err != nil {
		return 0, gerrors.New(gerrors.ErrCodeSearchFailed, "failed to count documents", err)
	}
	return n, nil
}

// Close closes the database. It is safe to call twice.
func (v *VectorCollection) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.graph = nil
	_, _ = v.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return v.db.Close()
}

// normalize returns a unit-length copy of vec.
func normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// similarity maps the cosine distance of unit vectors (0 to 2) to a
// score from 1 (identical) to 0 (opposite).
func similarity(a, b []float32) float64 {
	return float64(1 - hnsw.CosineDistance(a, b)/2)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
