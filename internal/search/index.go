package search

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/endpointd/internal/chunker"
	"github.com/kalambet/endpointd/internal/extract"
	"github.com/kalambet/endpointd/internal/kb"
)

// indexBatchSize is how many chunks are embedded and upserted per round.
const indexBatchSize = 64

// KBIndexSummary reports one ingestion run over the sqlite KB.
type KBIndexSummary struct {
	KBRows        int    `json:"kb_rows"`
	IndexedChunks int    `json:"indexed_chunks"`
	Collection    string `json:"collection"`
	VectorDir     string `json:"vector_dir"`
}

// DirIndexSummary reports one ingestion run over a directory.
type DirIndexSummary struct {
	FilesSeen     int `json:"files_seen"`
	IndexedChunks int `json:"indexed_chunks"`
	Skipped       int `json:"skipped"`
}

type pendingChunk struct {
	id   string
	doc  string
	meta map[string]string
}

// IndexFromKB chunks every knowledge-base row and upserts the embeddings
// into the vector collection. Each chunk gets a fresh random id suffix, so
// repeated runs append rather than replace.
func (s *Service) IndexFromKB(ctx context.Context) (*KBIndexSummary, error) {
	rows, err := s.deps.KB.All()
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}

	var pending []pendingChunk
	for _, row := range rows {
		base := fmt.Sprintf("Category: %s\nQuestion: %s\nAnswer: %s\nKeywords: %s\n",
			row.Category, row.Question, row.Answer, kb.JoinKeywords(row.Keywords))
		for idx, ch := range chunker.Split(base, chunker.DefaultMaxChars, chunker.DefaultOverlap) {
			pending = append(pending, pendingChunk{
				id:  fmt.Sprintf("kb_%d_%d_%s", row.ID, idx, randHex(8)),
				doc: ch,
				meta: map[string]string{
					"source":   "sqlite_kb",
					"category": row.Category,
					"kb_id":    fmt.Sprintf("%d", row.ID),
				},
			})
		}
	}

	total, err := s.upsertBatches(ctx, pending)
	if err != nil {
		return nil, err
	}
	return &KBIndexSummary{
		KBRows:        len(rows),
		IndexedChunks: total,
		Collection:    s.opts.Collection,
		VectorDir:     s.opts.VectorDir,
	}, nil
}

// IndexFromDir walks dir and ingests every readable text or PDF file.
// Unreadable and unsupported files are counted as skipped, never fatal. A
// missing directory yields an all-zero summary.
func (s *Service) IndexFromDir(ctx context.Context, dir string) (*DirIndexSummary, error) {
	summary := &DirIndexSummary{}

	var pending []pendingChunk
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		summary.FilesSeen++
		if !extract.Supported(path) {
			summary.Skipped++
			return nil
		}
		text, err := extract.Text(path)
		if err != nil || strings.TrimSpace(text) == "" {
			summary.Skipped++
			return nil
		}
		name := d.Name()
		for idx, ch := range chunker.Split(strings.TrimSpace(text), chunker.DefaultMaxChars, chunker.DefaultOverlap) {
			pending = append(pending, pendingChunk{
				id:  fmt.Sprintf("file_%s_%d", randHex(12), idx),
				doc: fmt.Sprintf("File: %s\nPath: %s\n\n%s", name, path, ch),
				meta: map[string]string{
					"source":   "file",
					"filename": name,
					"path":     path,
				},
			})
		}
		return nil
	})
	if err != nil {
		// WalkDir only errors on the root; treat a missing dir as empty.
		return summary, nil
	}

	total, err := s.upsertBatches(ctx, pending)
	if err != nil {
		return nil, err
	}
	summary.IndexedChunks = total
	return summary, nil
}

func (s *Service) upsertBatches(ctx context.Context, pending []pendingChunk) (int, error) {
	total := 0
	for start := 0; start < len(pending); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		ids := make([]string, len(batch))
		docs := make([]string, len(batch))
		metas := make([]map[string]string, len(batch))
		for i, p := range batch {
			ids[i] = p.id
			docs[i] = p.doc
			metas[i] = p.meta
		}

		embeddings, err := s.deps.Embedder.Embed(ctx, docs)
		if err != nil {
			return total, fmt.Errorf("embedding batch: %w", err)
		}
		if err := s.deps.Store.Upsert(s.opts.Collection, ids, docs, embeddings, metas); err != nil {
			return total, fmt.Errorf("upserting batch: %w", err)
		}
		total += len(batch)
	}
	return total, nil
}

func randHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
