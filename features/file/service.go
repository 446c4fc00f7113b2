package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gurukul/internal/adapter/minio"
	"gurukul/internal/config"
	"gurukul/internal/middleware"
	"gurukul/internal/worker"
)

const (
	TypeUploadedDocument = "UploadedDocument"
	TypeGeneratedContent = "GeneratedContent"

	presignExpiry = time.Hour
)

// ObjectStore is the slice of the object storage client the file
// feature needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string, tags map[string]string) error
	List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
	GetTags(ctx context.Context, key string) (map[string]string, error)
	PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Publisher hands ingestion tasks to the message queue.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Metadata describes one stored object as surfaced by the listing
// endpoints.
type Metadata struct {
	ObjectKey    string            `json:"object_key"`
	FileName     string            `json:"file_name"`
	LastModified time.Time         `json:"last_modified"`
	Size         int64             `json:"size"`
	DownloadURL  string            `json:"download_url"`
	Tags         map[string]string `json:"tags"`
	Status       string            `json:"status,omitempty"`
}

type Service struct {
	objects   ObjectStore
	publisher Publisher
}

func NewService(objects ObjectStore, publisher Publisher) *Service {
	return &Service{objects: objects, publisher: publisher}
}

// Upload stores the document under {user_id}/{chat_id}/{name}, tags it
// as a processing upload, and queues an ingestion task for it. The
// returned key is the object's permanent address; re-uploading the same
// filename overwrites the previous object.
func (s *Service) Upload(ctx context.Context, userID, chatID, filename, contentType string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("%s/%s/%s", userID, chatID, SanitizeFilename(filename))

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	tags := map[string]string{
		"user_id": userID,
		"chat_id": chatID,
		"type":    TypeUploadedDocument,
		"status":  worker.StatusProcessing,
	}

	if err := s.objects.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType, tags); err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	payload, err := json.Marshal(worker.IngestTaskPayload{
		ObjectKey:     objectKey,
		UserID:        userID,
		ChatID:        chatID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ingest task: %w", err)
	}
	if err := s.publisher.Publish(config.TopicIngestTask, payload); err != nil {
		return "", fmt.Errorf("failed to queue ingest task: %w", err)
	}

	return objectKey, nil
}

// ListByType returns the chat's objects carrying the expected type tag.
// Objects whose tags cannot be read are skipped rather than failing the
// listing, since a concurrent deletion can remove an object between the
// list and the tag fetch.
func (s *Service) ListByType(ctx context.Context, userID, chatID, expectedType string) ([]Metadata, error) {
	prefix := userID + "/" + chatID + "/"
	objects, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	results := []Metadata{}
	for _, obj := range objects {
		tags, err := s.objects.GetTags(ctx, obj.Key)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch object tags, skipping object", "object_key", obj.Key, "error", err)
			continue
		}
		if tags["user_id"] != userID || tags["chat_id"] != chatID || tags["type"] != expectedType {
			continue
		}

		url, err := s.objects.PresignedGet(ctx, obj.Key, presignExpiry)
		if err != nil {
			slog.WarnContext(ctx, "failed to presign download url, skipping object", "object_key", obj.Key, "error", err)
			continue
		}

		results = append(results, Metadata{
			ObjectKey:    obj.Key,
			FileName:     baseName(obj.Key),
			LastModified: obj.LastModified,
			Size:         obj.Size,
			DownloadURL:  url,
			Tags:         tags,
			Status:       tags["status"],
		})
	}
	return results, nil
}

// GeneratedStore saves agent-produced artifacts as tagged objects so
// they appear in the generated-content listing.
type GeneratedStore struct {
	objects ObjectStore
}

func NewGeneratedStore(objects ObjectStore) *GeneratedStore {
	return &GeneratedStore{objects: objects}
}

func (g *GeneratedStore) Save(ctx context.Context, userID, chatID, filename string, content []byte) error {
	objectKey := fmt.Sprintf("%s/%s/%s", userID, chatID, SanitizeFilename(filename))
	tags := map[string]string{
		"user_id": userID,
		"chat_id": chatID,
		"type":    TypeGeneratedContent,
	}
	if err := g.objects.Put(ctx, objectKey, bytes.NewReader(content), int64(len(content)), "text/markdown", tags); err != nil {
		return fmt.Errorf("failed to store generated content: %w", err)
	}
	return nil
}

func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
