package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gurukul/internal/adapter/weaviate"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Search(ctx context.Context, vec []float32, userID, chatID string, limit int) ([]weaviate.SearchResult, error) {
	args := m.Called(ctx, vec, userID, chatID, limit)
	return args.Get(0).([]weaviate.SearchResult), args.Error(1)
}

func TestSearch_ScopesToChatAndAppliesDefaultLimit(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	svc := NewService(embedder, store)

	vec := []float32{0.1, 0.2}
	embedder.On("Embed", mock.Anything, "mitosis").Return(vec, nil)
	store.On("Search", mock.Anything, vec, "u1", "c1", defaultTopK).Return([]weaviate.SearchResult{
		{Content: "Mitosis is cell division.", ObjectKey: "u1/c1/bio.pdf", Score: 0.92},
	}, nil)

	results, err := svc.Search(context.Background(), "u1", "c1", "mitosis", 0)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "u1/c1/bio.pdf", results[0].ObjectKey)
}

func TestSearch_EmbedFailurePropagates(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	svc := NewService(embedder, store)

	embedder.On("Embed", mock.Anything, "q").Return(nil, errors.New("quota exceeded"))

	_, err := svc.Search(context.Background(), "u1", "c1", "q", 3)

	assert.Error(t, err)
	store.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
