// Package vectorstore provides a persistent nearest-neighbor index backed by
// SQLite with brute-force cosine search. Entries live in named collections
// and carry JSON metadata used for exact-match filtering at query time.
//
// Brute force is fine at this scale; a store holding more than ~100K chunks
// should move to an ANN-capable backend.
package vectorstore

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a durable vector index persisted under a directory path.
// A Store only grows: there is no delete or compaction path.
type Store struct {
	db *sql.DB
}

// Hit is one query result: the stored document text, its metadata, and the
// cosine distance to the query embedding (smaller is closer).
type Hit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Open creates (or opens) the vector database file under dir.
// Pass ":memory:" as dir for an in-memory store (used by tests).
func Open(dir string) (*Store, error) {
	var dsn string
	if dir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating vector directory: %w", err)
		}
		dsn = filepath.Join(dir, "vectors.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging vector database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		document TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces entries by id within the named collection.
// ids, documents, embeddings, and metadatas are parallel slices of equal
// length; metadatas entries may be nil.
func (s *Store) Upsert(collection string, ids, documents []string, embeddings [][]float32, metadatas []map[string]string) error {
	if len(ids) != len(documents) || len(ids) != len(embeddings) || len(ids) != len(metadatas) {
		return fmt.Errorf("mismatched upsert slice lengths: ids=%d documents=%d embeddings=%d metadatas=%d",
			len(ids), len(documents), len(embeddings), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chunks (collection, id, document, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range ids {
		meta := metadatas[i]
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshalling metadata for %s: %w", ids[i], err)
		}
		blob := encodeFloat32s(embeddings[i])
		if _, err := stmt.Exec(collection, ids[i], documents[i], blob, string(metaJSON), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting chunk %s: %w", ids[i], err)
		}
	}

	return tx.Commit()
}

// hitScore tracks a candidate during the scan phase.
type hitScore struct {
	ID       string
	Distance float64
}

// Query returns up to k entries from the collection ordered by ascending
// cosine distance to the query embedding. The optional where filter keeps
// only entries whose metadata matches every given key/value exactly; the
// filter is applied before ranking.
func (s *Store) Query(collection string, embedding []float32, k int, where map[string]string) ([]Hit, error) {
	if k <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	queryNorm := norm(embedding)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT id, embedding, metadata FROM chunks WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	h := &hitHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if len(where) > 0 && !metadataMatches(metaJSON, where) {
			continue
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		dist := 1 - cosine(embedding, buf, queryNorm)
		if h.Len() < k {
			heap.Push(h, hitScore{ID: id, Distance: dist})
		} else if dist < (*h)[0].Distance {
			(*h)[0] = hitScore{ID: id, Distance: dist}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Drain the max-heap into ascending-distance order.
	ordered := make([]hitScore, h.Len())
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i] = heap.Pop(h).(hitScore)
	}

	hits := make([]Hit, 0, len(ordered))
	for _, c := range ordered {
		var doc, metaJSON string
		err := s.db.QueryRow(`SELECT document, metadata FROM chunks WHERE collection = ? AND id = ?`,
			collection, c.ID).Scan(&doc, &metaJSON)
		if err != nil {
			return nil, fmt.Errorf("fetching chunk %s: %w", c.ID, err)
		}
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
		}
		hits = append(hits, Hit{ID: c.ID, Text: doc, Metadata: meta, Distance: c.Distance})
	}
	return hits, nil
}

// Count returns the number of entries stored in the collection.
func (s *Store) Count(collection string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// metadataMatches reports whether every key/value in where appears exactly
// in the JSON metadata. Malformed metadata never matches.
func metadataMatches(metaJSON string, where map[string]string) bool {
	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return false
	}
	for k, v := range where {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * |b|).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return dot / (aNorm * bNorm)
}

// hitHeap is a max-heap of hitScore ordered by Distance, so the worst
// candidate sits at the root and is evicted first during the top-K scan.
type hitHeap []hitScore

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(hitScore)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
