package embedding

import (
	"context"
	"fmt"
	"math"
	"testing"
)

// fakeEngine returns a deterministic vector derived from the text length.
type fakeEngine struct {
	dims  int
	calls int
	fail  bool
}

func (f *fakeEngine) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("engine down")
	}
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec, nil
}

func TestEmbedEmpty(t *testing.T) {
	p := NewProvider(&fakeEngine{dims: 4}, "test-model")
	got, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed(nil): %v", err)
	}
	if got != nil {
		t.Errorf("Embed(nil) = %v, want nil", got)
	}
}

func TestEmbedOrderAndLength(t *testing.T) {
	eng := &fakeEngine{dims: 8}
	p := NewProvider(eng, "test-model")

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	vecs, err := p.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	if eng.calls != len(texts) {
		t.Errorf("engine called %d times, want %d", eng.calls, len(texts))
	}

	// The fake's first component scales with text length, so after
	// normalization relative ordering of components still identifies
	// which text produced which vector.
	for i, v := range vecs {
		if len(v) != 8 {
			t.Fatalf("vector %d has %d dims, want 8", i, len(v))
		}
	}
	// Shorter text -> smaller first component relative to last.
	r0 := vecs[0][0] / vecs[0][7]
	r5 := vecs[5][0] / vecs[5][7]
	if r0 >= r5 {
		t.Errorf("vector order corrupted: ratios %v >= %v", r0, r5)
	}
}

func TestEmbedNormalized(t *testing.T) {
	p := NewProvider(&fakeEngine{dims: 16}, "test-model")
	vecs, err := p.Embed(context.Background(), []string{"triage"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, f := range vecs[0] {
		sum += float64(f) * float64(f)
	}
	if norm := math.Sqrt(sum); math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("L2 norm = %v, want 1.0", norm)
	}
}

func TestEmbedPropagatesFailure(t *testing.T) {
	p := NewProvider(&fakeEngine{dims: 4, fail: true}, "test-model")
	if _, err := p.Embed(context.Background(), []string{"x", "y"}); err == nil {
		t.Error("Embed with failing engine: want error, got nil")
	}
}

func TestEmbedOne(t *testing.T) {
	p := NewProvider(&fakeEngine{dims: 4}, "test-model")
	vec, err := p.EmbedOne(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("got %d dims, want 4", len(vec))
	}
}
