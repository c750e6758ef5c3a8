// Package search routes knowledge-base lookups across the configured
// retrieval backend: legacy sqlite fuzzy matching, Postgres substring
// search, or vector similarity with optional answer synthesis. It also
// owns vector ingestion from the sqlite KB and from local directories.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/synth"
)

// Backend selects which retrieval path SearchKB uses.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendVector   Backend = "vector"
)

// ParseBackend validates a backend name from config.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendSQLite:
		return BackendSQLite, nil
	case BackendPostgres:
		return BackendPostgres, nil
	case BackendVector:
		return BackendVector, nil
	default:
		return "", fmt.Errorf("unknown search backend %q (want sqlite, postgres or vector)", s)
	}
}

// Context is one retrieved snippet with its provenance.
type Context struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance,omitempty"`
}

// Result is the outcome of a single backend lookup. A zero Confidence
// with an empty Answer means the backend found nothing usable.
type Result struct {
	Answer     string    `json:"answer"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Contexts   []Context `json:"contexts,omitempty"`
}

// Confidence levels per backend. The sqlite path reports the raw fuzzy
// score instead, so values across backends are not directly comparable.
const (
	confidenceVectorSynth = 0.75
	confidenceVectorRaw   = 0.6
	confidencePostgres    = 0.5
)

// KBStore is the sqlite knowledge base surface the service needs.
type KBStore interface {
	FuzzySearch(query string) (*kb.Entry, float64, error)
	All() ([]kb.Entry, error)
}

// LikeSearcher is the Postgres substring-search surface.
type LikeSearcher interface {
	SearchLike(ctx context.Context, query string, limit int) ([]kb.Entry, error)
}

// ContextRetriever returns the top-k vector matches for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int, where map[string]string) ([]Context, error)
}

// Answerer produces a synthesized answer from retrieved context.
type Answerer interface {
	Synthesize(ctx context.Context, query string, contexts []synth.Context) (string, error)
}

// Embedder turns a batch of texts into vectors, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks for later retrieval.
type ChunkStore interface {
	Upsert(collection string, ids, documents []string, embeddings [][]float32, metadatas []map[string]string) error
}

// Options configures a Service.
type Options struct {
	Backend    Backend
	TopK       int
	Synthesize bool
	Collection string
	VectorDir  string
}

// Deps are the backend implementations the service dispatches to.
// OpenPostgres is called lazily on first use so the sqlite and vector
// modes never require a Postgres server.
type Deps struct {
	KB           KBStore
	OpenPostgres func() (LikeSearcher, error)
	Retriever    ContextRetriever
	Embedder     Embedder
	Store        ChunkStore
	Synth        Answerer
}

// Service dispatches knowledge-base searches to the configured backend.
type Service struct {
	opts Options
	deps Deps

	pgMu sync.Mutex
	pg   LikeSearcher
}

func NewService(opts Options, deps Deps) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Service{opts: opts, deps: deps}
}

// Backend reports the configured retrieval backend.
func (s *Service) Backend() Backend { return s.opts.Backend }

// SearchKB runs one lookup against the configured backend. topK <= 0
// falls back to the configured default. The where filter only applies to
// the vector backend.
func (s *Service) SearchKB(ctx context.Context, query string, where map[string]string, topK int) (*Result, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return &Result{Source: string(s.opts.Backend)}, nil
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}

	switch s.opts.Backend {
	case BackendVector:
		return s.searchVector(ctx, query, q, where, topK)
	case BackendPostgres:
		return s.searchPostgres(ctx, q, topK)
	default:
		return s.searchSQLite(q)
	}
}

func (s *Service) searchVector(ctx context.Context, original, q string, where map[string]string, topK int) (*Result, error) {
	contexts, err := s.deps.Retriever.Retrieve(ctx, q, topK, where)
	if err != nil {
		return nil, fmt.Errorf("vector retrieve: %w", err)
	}
	if len(contexts) == 0 {
		return &Result{Source: string(BackendVector), Contexts: []Context{}}, nil
	}

	if s.opts.Synthesize && s.deps.Synth != nil {
		answer, err := s.deps.Synth.Synthesize(ctx, original, toSynthContexts(contexts))
		if err != nil {
			return nil, fmt.Errorf("synthesize: %w", err)
		}
		return &Result{
			Answer:     answer,
			Source:     "vector+claude",
			Confidence: confidenceVectorSynth,
			Contexts:   contexts,
		}, nil
	}

	return &Result{
		Answer:     contexts[0].Text,
		Source:     string(BackendVector),
		Confidence: confidenceVectorRaw,
		Contexts:   contexts,
	}, nil
}

func (s *Service) searchPostgres(ctx context.Context, q string, topK int) (*Result, error) {
	pg, err := s.postgres()
	if err != nil {
		return nil, err
	}
	hits, err := pg.SearchLike(ctx, q, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres search: %w", err)
	}
	if len(hits) == 0 {
		return &Result{Source: string(BackendPostgres)}, nil
	}

	best := hits[0]
	return &Result{
		Answer:     best.Answer,
		Source:     string(BackendPostgres),
		Confidence: confidencePostgres,
		Contexts:   []Context{entryContext(best, string(BackendPostgres))},
	}, nil
}

func (s *Service) searchSQLite(q string) (*Result, error) {
	entry, score, err := s.deps.KB.FuzzySearch(q)
	if err != nil {
		return nil, fmt.Errorf("sqlite fuzzy search: %w", err)
	}
	if entry == nil {
		return &Result{Source: string(BackendSQLite), Confidence: score}, nil
	}
	return &Result{
		Answer:     entry.Answer,
		Source:     string(BackendSQLite),
		Confidence: score,
		Contexts:   []Context{entryContext(*entry, string(BackendSQLite))},
	}, nil
}

func (s *Service) postgres() (LikeSearcher, error) {
	s.pgMu.Lock()
	defer s.pgMu.Unlock()
	if s.pg != nil {
		return s.pg, nil
	}
	if s.deps.OpenPostgres == nil {
		return nil, fmt.Errorf("postgres backend selected but not configured")
	}
	pg, err := s.deps.OpenPostgres()
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	s.pg = pg
	return s.pg, nil
}

func entryContext(e kb.Entry, source string) Context {
	return Context{
		Text: fmt.Sprintf("Category: %s\nQ: %s\nA: %s", e.Category, e.Question, e.Answer),
		Metadata: map[string]string{
			"source":   source,
			"kb_id":    strconv.FormatInt(e.ID, 10),
			"category": e.Category,
		},
	}
}

func toSynthContexts(contexts []Context) []synth.Context {
	out := make([]synth.Context, len(contexts))
	for i, c := range contexts {
		out[i] = synth.Context{Text: c.Text, Metadata: c.Metadata}
	}
	return out
}
