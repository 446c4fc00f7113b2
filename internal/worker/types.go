package worker

import (
	"context"
)

// Chunk is one embedding point: a piece of document content plus the
// identity of the chat that produced it. The payload fields are the only
// ownership link; no store enforces referential integrity.
type Chunk struct {
	Content    string
	Vector     []float32
	UserID     string
	ChatID     string
	ObjectKey  string
	ChunkIndex int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
}

// ObjectSource reads uploaded objects and their tag sets. SetTags
// replaces the whole tag set, which is why status updates must
// read-modify-write.
type ObjectSource interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	GetTags(ctx context.Context, key string) (map[string]string, error)
	SetTags(ctx context.Context, key string, tags map[string]string) error
}
