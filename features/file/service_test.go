package file

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gurukul/internal/adapter/minio"
	"gurukul/internal/config"
	"gurukul/internal/worker"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string, tags map[string]string) error {
	return m.Called(ctx, key, data, size, contentType, tags).Error(0)
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) GetTags(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockObjectStore) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

func TestUpload_TagsObjectAndQueuesIngestion(t *testing.T) {
	objects := new(MockObjectStore)
	publisher := new(MockPublisher)
	svc := NewService(objects, publisher)

	objects.On("Put", mock.Anything, "u1/c1/lesson_plan.pdf", mock.Anything, int64(4), "application/pdf",
		map[string]string{
			"user_id": "u1",
			"chat_id": "c1",
			"type":    TypeUploadedDocument,
			"status":  worker.StatusProcessing,
		}).Return(nil)
	publisher.On("Publish", config.TopicIngestTask, mock.MatchedBy(func(body []byte) bool {
		var payload worker.IngestTaskPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return false
		}
		return payload.ObjectKey == "u1/c1/lesson_plan.pdf" && payload.UserID == "u1" && payload.ChatID == "c1"
	})).Return(nil)

	key, err := svc.Upload(context.Background(), "u1", "c1", "lesson plan.pdf", "application/pdf", []byte("data"))

	assert.NoError(t, err)
	assert.Equal(t, "u1/c1/lesson_plan.pdf", key)
	objects.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestUpload_PutFailureDoesNotQueue(t *testing.T) {
	objects := new(MockObjectStore)
	publisher := new(MockPublisher)
	svc := NewService(objects, publisher)

	objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket unreachable"))

	_, err := svc.Upload(context.Background(), "u1", "c1", "a.pdf", "", []byte("data"))

	assert.Error(t, err)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestListByType_FiltersOnTags(t *testing.T) {
	objects := new(MockObjectStore)
	svc := NewService(objects, new(MockPublisher))

	now := time.Now()
	objects.On("List", mock.Anything, "u1/c1/").Return([]minio.ObjectInfo{
		{Key: "u1/c1/upload.pdf", Size: 10, LastModified: now},
		{Key: "u1/c1/generated.md", Size: 20, LastModified: now},
		{Key: "u1/c1/other-user.pdf", Size: 5, LastModified: now},
	}, nil)
	objects.On("GetTags", mock.Anything, "u1/c1/upload.pdf").Return(map[string]string{
		"user_id": "u1", "chat_id": "c1", "type": TypeUploadedDocument, "status": worker.StatusIndexed,
	}, nil)
	objects.On("GetTags", mock.Anything, "u1/c1/generated.md").Return(map[string]string{
		"user_id": "u1", "chat_id": "c1", "type": TypeGeneratedContent,
	}, nil)
	objects.On("GetTags", mock.Anything, "u1/c1/other-user.pdf").Return(map[string]string{
		"user_id": "u2", "chat_id": "c1", "type": TypeUploadedDocument,
	}, nil)
	objects.On("PresignedGet", mock.Anything, "u1/c1/upload.pdf", time.Hour).Return("https://minio/upload.pdf", nil)

	files, err := svc.ListByType(context.Background(), "u1", "c1", TypeUploadedDocument)

	assert.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "upload.pdf", files[0].FileName)
	assert.Equal(t, worker.StatusIndexed, files[0].Status)
	assert.Equal(t, "https://minio/upload.pdf", files[0].DownloadURL)
}

func TestListByType_TagFetchFailureSkipsObject(t *testing.T) {
	objects := new(MockObjectStore)
	svc := NewService(objects, new(MockPublisher))

	objects.On("List", mock.Anything, "u1/c1/").Return([]minio.ObjectInfo{
		{Key: "u1/c1/gone.pdf"},
		{Key: "u1/c1/still-here.pdf"},
	}, nil)
	// Deleted between the listing and the tag read.
	objects.On("GetTags", mock.Anything, "u1/c1/gone.pdf").Return(nil, errors.New("NoSuchKey"))
	objects.On("GetTags", mock.Anything, "u1/c1/still-here.pdf").Return(map[string]string{
		"user_id": "u1", "chat_id": "c1", "type": TypeUploadedDocument,
	}, nil)
	objects.On("PresignedGet", mock.Anything, "u1/c1/still-here.pdf", time.Hour).Return("https://minio/still-here.pdf", nil)

	files, err := svc.ListByType(context.Background(), "u1", "c1", TypeUploadedDocument)

	assert.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "u1/c1/still-here.pdf", files[0].ObjectKey)
}
