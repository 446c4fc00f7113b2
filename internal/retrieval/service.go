package retrieval

import (
	"context"
	"fmt"

	"gurukul/internal/adapter/weaviate"
)

const defaultTopK = 5

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, vec []float32, userID, chatID string, limit int) ([]weaviate.SearchResult, error)
}

// Service retrieves document chunks relevant to a query, scoped to one
// chat's uploads.
type Service struct {
	embedder Embedder
	store    VectorStore
}

func NewService(embedder Embedder, store VectorStore) *Service {
	return &Service{embedder: embedder, store: store}
}

func (s *Service) Search(ctx context.Context, userID, chatID, query string, limit int) ([]weaviate.SearchResult, error) {
	if limit <= 0 {
		limit = defaultTopK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.store.Search(ctx, vec, userID, chatID, limit)
}
