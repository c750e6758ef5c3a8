package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/synth"
)

type fakeKB struct {
	entry   *kb.Entry
	score   float64
	entries []kb.Entry
	err     error
}

func (f *fakeKB) FuzzySearch(query string) (*kb.Entry, float64, error) {
	return f.entry, f.score, f.err
}

func (f *fakeKB) All() ([]kb.Entry, error) { return f.entries, f.err }

type fakeLike struct {
	hits []kb.Entry
	err  error
	got  string
}

func (f *fakeLike) SearchLike(ctx context.Context, query string, limit int) ([]kb.Entry, error) {
	f.got = query
	return f.hits, f.err
}

type fakeRetriever struct {
	contexts []Context
	err      error
	gotQuery string
	gotK     int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int, where map[string]string) ([]Context, error) {
	f.gotQuery = query
	f.gotK = k
	return f.contexts, f.err
}

type fakeSynth struct {
	answer string
	err    error
	gotQ   string
	gotCtx []synth.Context
}

func (f *fakeSynth) Synthesize(ctx context.Context, query string, contexts []synth.Context) (string, error) {
	f.gotQ = query
	f.gotCtx = contexts
	return f.answer, f.err
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"sqlite":    BackendSQLite,
		"POSTGRES":  BackendPostgres,
		" vector ":  BackendVector,
	} {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseBackend("chroma"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSearchKBEmptyQuery(t *testing.T) {
	s := NewService(Options{Backend: BackendVector}, Deps{})
	res, err := s.SearchKB(context.Background(), "   ", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "" || res.Confidence != 0 || res.Source != "vector" {
		t.Errorf("unexpected result for empty query: %+v", res)
	}
}

func TestSearchKBSQLiteHit(t *testing.T) {
	entry := &kb.Entry{ID: 3, Category: "network", Question: "wifi?", Answer: "restart the adapter"}
	s := NewService(Options{Backend: BackendSQLite}, Deps{KB: &fakeKB{entry: entry, score: 0.81}})

	res, err := s.SearchKB(context.Background(), "WiFi Disconnecting", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "restart the adapter" || res.Source != "sqlite" || res.Confidence != 0.81 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Contexts) != 1 {
		t.Fatalf("expected one context, got %d", len(res.Contexts))
	}
	meta := res.Contexts[0].Metadata
	if meta["source"] != "sqlite" || meta["kb_id"] != "3" || meta["category"] != "network" {
		t.Errorf("unexpected context metadata: %v", meta)
	}
	if !strings.Contains(res.Contexts[0].Text, "Q: wifi?") {
		t.Errorf("unexpected context text: %q", res.Contexts[0].Text)
	}
}

func TestSearchKBSQLiteMissReportsScore(t *testing.T) {
	s := NewService(Options{Backend: BackendSQLite}, Deps{KB: &fakeKB{score: 0.12}})
	res, err := s.SearchKB(context.Background(), "unrelated", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "" || res.Confidence != 0.12 {
		t.Errorf("unexpected miss result: %+v", res)
	}
}

func TestSearchKBPostgres(t *testing.T) {
	like := &fakeLike{hits: []kb.Entry{
		{ID: 7, Category: "vpn", Question: "tunnel down", Answer: "re-auth the client"},
		{ID: 8, Category: "vpn", Question: "other", Answer: "other"},
	}}
	opened := 0
	s := NewService(Options{Backend: BackendPostgres}, Deps{
		OpenPostgres: func() (LikeSearcher, error) { opened++; return like, nil },
	})

	for i := 0; i < 2; i++ {
		res, err := s.SearchKB(context.Background(), "Tunnel", nil, 0)
		if err != nil {
			t.Fatal(err)
		}
		if res.Answer != "re-auth the client" || res.Source != "postgres" || res.Confidence != 0.5 {
			t.Errorf("unexpected result: %+v", res)
		}
	}
	if opened != 1 {
		t.Errorf("postgres opened %d times, want lazy single open", opened)
	}
	if like.got != "tunnel" {
		t.Errorf("query not lowercased: %q", like.got)
	}
}

func TestSearchKBPostgresNoHits(t *testing.T) {
	s := NewService(Options{Backend: BackendPostgres}, Deps{
		OpenPostgres: func() (LikeSearcher, error) { return &fakeLike{}, nil },
	})
	res, err := s.SearchKB(context.Background(), "nothing", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "" || res.Confidence != 0 || res.Source != "postgres" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSearchKBVectorSynthesized(t *testing.T) {
	retr := &fakeRetriever{contexts: []Context{
		{Text: "top chunk", Metadata: map[string]string{"source": "sqlite_kb"}},
		{Text: "second chunk", Metadata: map[string]string{"source": "file"}},
	}}
	sy := &fakeSynth{answer: `{"root_cause":"dns"}`}
	s := NewService(Options{Backend: BackendVector, Synthesize: true, TopK: 4}, Deps{Retriever: retr, Synth: sy})

	res, err := s.SearchKB(context.Background(), "VPN drops hourly", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "vector+claude" || res.Confidence != 0.75 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Answer != `{"root_cause":"dns"}` {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if retr.gotQuery != "vpn drops hourly" || retr.gotK != 4 {
		t.Errorf("retriever got %q k=%d", retr.gotQuery, retr.gotK)
	}
	// The synthesizer sees the user's original phrasing.
	if sy.gotQ != "VPN drops hourly" {
		t.Errorf("synthesizer got %q", sy.gotQ)
	}
	if len(sy.gotCtx) != 2 || sy.gotCtx[0].Text != "top chunk" {
		t.Errorf("unexpected synth contexts: %+v", sy.gotCtx)
	}
}

func TestSearchKBVectorTopChunkWithoutSynth(t *testing.T) {
	retr := &fakeRetriever{contexts: []Context{{Text: "best match"}, {Text: "runner up"}}}
	s := NewService(Options{Backend: BackendVector}, Deps{Retriever: retr})

	res, err := s.SearchKB(context.Background(), "vpn", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "best match" || res.Source != "vector" || res.Confidence != 0.6 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Contexts) != 2 {
		t.Errorf("expected both contexts carried through, got %d", len(res.Contexts))
	}
}

func TestSearchKBVectorEmpty(t *testing.T) {
	s := NewService(Options{Backend: BackendVector, Synthesize: true}, Deps{
		Retriever: &fakeRetriever{},
		Synth:     &fakeSynth{answer: "should not run"},
	})
	res, err := s.SearchKB(context.Background(), "vpn", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "" || res.Confidence != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Contexts == nil || len(res.Contexts) != 0 {
		t.Errorf("expected empty non-nil contexts, got %#v", res.Contexts)
	}
}

func TestSearchKBVectorRetrieveError(t *testing.T) {
	s := NewService(Options{Backend: BackendVector}, Deps{
		Retriever: &fakeRetriever{err: errors.New("store offline")},
	})
	if _, err := s.SearchKB(context.Background(), "vpn", nil, 0); err == nil {
		t.Error("expected retrieval error to propagate")
	}
}

func TestSearchKBPostgresNotConfigured(t *testing.T) {
	s := NewService(Options{Backend: BackendPostgres}, Deps{})
	if _, err := s.SearchKB(context.Background(), "vpn", nil, 0); err == nil {
		t.Error("expected error when postgres is not configured")
	}
}
