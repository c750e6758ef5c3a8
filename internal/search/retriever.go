package search

import (
	"context"
	"fmt"

	"github.com/kalambet/endpointd/internal/embedding"
	"github.com/kalambet/endpointd/internal/vectorstore"
)

// Retriever answers vector queries against one collection.
type Retriever struct {
	provider   *embedding.Provider
	store      *vectorstore.Store
	collection string
}

func NewRetriever(provider *embedding.Provider, store *vectorstore.Store, collection string) *Retriever {
	return &Retriever{provider: provider, store: store, collection: collection}
}

// Retrieve embeds the query and returns the k nearest chunks. Short triage
// queries ("issue with VPN") match better when framed as an endpoint issue,
// so the query is expanded before embedding.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, where map[string]string) ([]Context, error) {
	expanded := fmt.Sprintf(
		"Endpoint issue description: %s\nConsider: VPN/connectivity/authentication/DNS/certificates/routing/client.\n",
		query)

	emb, err := r.provider.EmbedOne(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.store.Query(r.collection, emb, k, where)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.collection, err)
	}

	contexts := make([]Context, len(hits))
	for i, h := range hits {
		contexts[i] = Context{Text: h.Text, Metadata: h.Metadata, Distance: h.Distance}
	}
	return contexts, nil
}
