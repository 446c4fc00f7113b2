package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gurukul/internal/adapter/minio"
	"gurukul/internal/agent"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyMessage = errors.New("message cannot be empty")
)

// Repository persists and queries chat history.
type Repository interface {
	InsertHuman(ctx context.Context, userID, chatID, content string) error
	InsertAI(ctx context.Context, userID, chatID, agentName, content string) error
	Messages(ctx context.Context, userID, chatID string) ([]Message, error)
	ListChats(ctx context.Context, userID string) ([]Summary, error)
	UpdateChatName(ctx context.Context, userID, chatID, name string) (bool, error)
	DeleteChat(ctx context.Context, userID, chatID string) (int64, error)
}

// ObjectStore is the slice of the object storage client chat deletion
// needs.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

// VectorIndex deletes a chat's embeddings. Failures are soft and show
// up as a zero count, never as an error.
type VectorIndex interface {
	DeleteByChat(ctx context.Context, userID, chatID string) int
}

// CheckpointStore deletes a chat's agent checkpoints, same soft-failure
// contract as VectorIndex.
type CheckpointStore interface {
	DeleteChat(ctx context.Context, userID, chatID string) int64
}

// TurnRunner executes one agent turn and returns the messages the
// agents produced.
type TurnRunner interface {
	Run(ctx context.Context, userID, chatID, message string) ([]agent.Message, error)
}

// DeleteResult aggregates what one chat deletion removed across the
// four stores.
type DeleteResult struct {
	FilesDeleted       int   `json:"deleted_files_count"`
	MessagesDeleted    int64 `json:"deleted_messages_count"`
	EmbeddingsDeleted  int   `json:"deleted_embeddings_count"`
	CheckpointsDeleted int64 `json:"deleted_checkpoints_count"`
}

type Service struct {
	repo        Repository
	objects     ObjectStore
	vectors     VectorIndex
	checkpoints CheckpointStore
	runner      TurnRunner
	baseChatID  int
}

func NewService(repo Repository, objects ObjectStore, vectors VectorIndex, checkpoints CheckpointStore, runner TurnRunner, baseChatID int) *Service {
	return &Service{
		repo:        repo,
		objects:     objects,
		vectors:     vectors,
		checkpoints: checkpoints,
		runner:      runner,
		baseChatID:  baseChatID,
	}
}

// DeleteChat removes a chat from all four stores in a fixed order:
// uploaded objects, then embeddings, then checkpoints, then message
// history. The operation is best effort rather than transactional.
// Object, embedding, and checkpoint failures degrade to smaller counts;
// only a message-history failure is fatal, so a chat is never reported
// deleted while its messages survive.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) (*DeleteResult, error) {
	prefix := userID + "/" + chatID + "/"
	objects, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat objects: %w", err)
	}

	messages, err := s.repo.Messages(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrChatNotFound
	}

	// One broken object must not keep the rest of the chat's files
	// from being removed.
	for _, obj := range objects {
		if err := s.objects.Remove(ctx, obj.Key); err != nil {
			slog.WarnContext(ctx, "failed to delete chat object", "object_key", obj.Key, "error", err)
		}
	}

	embeddings := s.vectors.DeleteByChat(ctx, userID, chatID)
	checkpoints := s.checkpoints.DeleteChat(ctx, userID, chatID)

	if _, err := s.repo.DeleteChat(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("failed to delete chat history: %w", err)
	}

	return &DeleteResult{
		FilesDeleted:       len(objects),
		MessagesDeleted:    int64(len(messages)),
		EmbeddingsDeleted:  embeddings,
		CheckpointsDeleted: checkpoints,
	}, nil
}

// SendMessage stores the user's message, runs one agent turn, and
// stores every reply the agents produced before returning them.
func (s *Service) SendMessage(ctx context.Context, userID, chatID, message string) ([]agent.Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.repo.InsertHuman(ctx, userID, chatID, message); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	replies, err := s.runner.Run(ctx, userID, chatID, message)
	if err != nil {
		return nil, fmt.Errorf("agent interaction failed: %w", err)
	}

	for _, reply := range replies {
		if err := s.repo.InsertAI(ctx, userID, chatID, reply.Agent, reply.Content); err != nil {
			return nil, fmt.Errorf("failed to store agent reply: %w", err)
		}
	}
	return replies, nil
}

// History returns the chat's messages with storage roles normalized to
// the API's user/assistant vocabulary.
func (s *Service) History(ctx context.Context, userID, chatID string) ([]Message, error) {
	messages, err := s.repo.Messages(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		switch strings.ToLower(messages[i].Role) {
		case "ai", "assistant":
			messages[i].Role = "assistant"
		default:
			messages[i].Role = "user"
		}
	}
	return messages, nil
}

func (s *Service) ListChats(ctx context.Context, userID string) ([]Summary, error) {
	return s.repo.ListChats(ctx, userID)
}

// NextChatID picks one past the highest numeric chat id the user has,
// falling back to the configured base when the user has no numeric
// chats yet.
func (s *Service) NextChatID(ctx context.Context, userID string) (string, error) {
	chats, err := s.repo.ListChats(ctx, userID)
	if err != nil {
		return "", err
	}

	next := s.baseChatID + 1
	highest := -1
	for _, chat := range chats {
		id, err := strconv.Atoi(chat.ChatID)
		if err != nil {
			continue
		}
		if id > highest {
			highest = id
		}
	}
	if highest >= 0 {
		next = highest + 1
	}
	return strconv.Itoa(next), nil
}

// Rename updates the chat's display name.
func (s *Service) Rename(ctx context.Context, userID, chatID, name string) error {
	ok, err := s.repo.UpdateChatName(ctx, userID, chatID, name)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	if !ok {
		return ErrChatNotFound
	}
	return nil
}
