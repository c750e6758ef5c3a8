// Package embedding turns batches of text into fixed-length, L2-normalized
// dense vectors using a local embedding model.
package embedding

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Engine is the transport that produces raw embedding vectors.
// *ollama.Client satisfies it.
type Engine interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Provider wraps an Engine to generate normalized text embeddings with a
// fixed model. Vectors are deterministic for a given model version; callers
// persisting embeddings should re-index after a model upgrade.
type Provider struct {
	engine Engine
	model  string
}

// NewProvider creates a Provider using the given Engine and model name.
func NewProvider(e Engine, model string) *Provider {
	return &Provider{engine: e, model: model}
}

// Model returns the embedding model name.
func (p *Provider) Model() string {
	return p.model
}

// EmbedOne returns the normalized embedding vector for a single text.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.engine.Embed(ctx, p.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	normalize(vec)
	return vec, nil
}

// Embed returns normalized embedding vectors for multiple texts, in input
// order. Texts are embedded concurrently with bounded parallelism.
// Returns nil (not error) for empty/nil input.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the engine.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := p.engine.Embed(gCtx, p.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			normalize(vec)
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalize scales v to unit L2 norm in place. Zero vectors are left as-is.
func normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
