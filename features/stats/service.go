package stats

import (
	"context"
	"fmt"

	"gurukul/features/chat"
	"gurukul/internal/adapter/minio"
)

// ChatSource reports the user's chats with per-chat message counts.
type ChatSource interface {
	ListChats(ctx context.Context, userID string) ([]chat.Summary, error)
}

type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
}

// VectorCounter counts embedding points, all chats when chatID is empty.
type VectorCounter interface {
	Count(ctx context.Context, userID, chatID string) int
}

type CheckpointCounter interface {
	CountUser(ctx context.Context, userID string) int64
}

// Overview is a per-user snapshot of how much data each store holds.
// Embedding and checkpoint counts are soft reads and report zero when
// their store is unavailable.
type Overview struct {
	UserID          string `json:"user_id"`
	ChatCount       int    `json:"chat_count"`
	MessageCount    int64  `json:"message_count"`
	FileCount       int    `json:"file_count"`
	EmbeddingCount  int    `json:"embedding_count"`
	CheckpointCount int64  `json:"checkpoint_count"`
}

type Service struct {
	chats       ChatSource
	objects     ObjectStore
	vectors     VectorCounter
	checkpoints CheckpointCounter
}

func NewService(chats ChatSource, objects ObjectStore, vectors VectorCounter, checkpoints CheckpointCounter) *Service {
	return &Service{chats: chats, objects: objects, vectors: vectors, checkpoints: checkpoints}
}

func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	summaries, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	var messages int64
	for _, summary := range summaries {
		messages += summary.MessageCount
	}

	objects, err := s.objects.List(ctx, userID+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return &Overview{
		UserID:          userID,
		ChatCount:       len(summaries),
		MessageCount:    messages,
		FileCount:       len(objects),
		EmbeddingCount:  s.vectors.Count(ctx, userID, ""),
		CheckpointCount: s.checkpoints.CountUser(ctx, userID),
	}, nil
}
