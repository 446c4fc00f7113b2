package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"
	"gurukul/internal/middleware"
	"gurukul/internal/text"
)

const (
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusError      = "error"
)

const (
	chunkMaxTokens = 400
	chunkOverlap   = 40
	embedTimeout   = 60 * time.Second
)

// IngestConsumer turns an uploaded object into embedding points and
// stamps the object's status tag when done. It races against chat
// deletion: the object may disappear mid-flight, in which case the tag
// write fails and is discarded, since deletion supersedes status.
type IngestConsumer struct {
	objects  ObjectSource
	embedder Embedder
	store    VectorStore
}

func NewIngestConsumer(objects ObjectSource, embedder Embedder, store VectorStore) *IngestConsumer {
	return &IngestConsumer{objects: objects, embedder: embedder, store: store}
}

func (c *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx = middleware.WithChatIdentity(ctx, payload.UserID, payload.ChatID)

	status := StatusIndexed
	if err := c.ingest(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "object_key", payload.ObjectKey)
		status = StatusError
	} else {
		slog.InfoContext(ctx, "ingestion completed", "object_key", payload.ObjectKey)
	}

	c.stampStatus(ctx, payload.ObjectKey, status)

	// The status tag is terminal either way; never requeue.
	return nil
}

func (c *IngestConsumer) ingest(ctx context.Context, payload IngestTaskPayload) error {
	data, err := c.objects.Fetch(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}

	chunks := text.ChunkDocument(string(data), chunkMaxTokens, chunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s produced no chunks", payload.ObjectKey)
	}

	for i, chunk := range chunks {
		embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		vector, err := c.embedder.Embed(embedCtx, chunk.Content)
		if err != nil {
			cancel()
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}

		err = c.store.StoreChunk(embedCtx, Chunk{
			Content:    chunk.Content,
			Vector:     vector,
			UserID:     payload.UserID,
			ChatID:     payload.ChatID,
			ObjectKey:  payload.ObjectKey,
			ChunkIndex: i,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("store chunk %d: %w", i, err)
		}
	}

	return nil
}

// stampStatus re-reads the object's current tags before writing so a
// concurrent tag writer is not clobbered; the store's tagging API
// replaces the whole set.
func (c *IngestConsumer) stampStatus(ctx context.Context, key, status string) {
	tags, err := c.objects.GetTags(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to read tags for status update", "error", err, "object_key", key)
		return
	}

	tags["status"] = status
	if err := c.objects.SetTags(ctx, key, tags); err != nil {
		// Expected when the object was deleted while ingesting.
		slog.WarnContext(ctx, "failed to update ingestion status tags", "error", err, "object_key", key)
	}
}
