package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockObjectSource struct {
	mock.Mock
}

func (m *MockObjectSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectSource) GetTags(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockObjectSource) SetTags(ctx context.Context, key string, tags map[string]string) error {
	return m.Called(ctx, key, tags).Error(0)
}

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

func (m *MockVectorStore) StoreChunk(ctx context.Context, chunk Chunk) error {
	return m.Called(ctx, chunk).Error(0)
}

func taskMessage(t *testing.T, payload IngestTaskPayload) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	return nsq.NewMessage(nsq.MessageID{}, body)
}

func TestHandleMessage_EmptyBodyIsDropped(t *testing.T) {
	consumer := NewIngestConsumer(new(MockObjectSource), new(MockEmbedder), new(MockVectorStore))

	err := consumer.HandleMessage(nsq.NewMessage(nsq.MessageID{}, nil))

	assert.NoError(t, err)
}

func TestHandleMessage_PoisonPillIsNotRequeued(t *testing.T) {
	objects := new(MockObjectSource)
	consumer := NewIngestConsumer(objects, new(MockEmbedder), new(MockVectorStore))

	err := consumer.HandleMessage(nsq.NewMessage(nsq.MessageID{}, []byte("{not json")))

	assert.NoError(t, err)
	objects.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestHandleMessage_SuccessStampsIndexed(t *testing.T) {
	objects := new(MockObjectSource)
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	consumer := NewIngestConsumer(objects, embedder, store)

	objects.On("Fetch", mock.Anything, "u1/c1/notes.txt").Return([]byte("Plants make food from light."), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)
	store.On("StoreChunk", mock.Anything, mock.MatchedBy(func(chunk Chunk) bool {
		return chunk.UserID == "u1" && chunk.ChatID == "c1" && chunk.ObjectKey == "u1/c1/notes.txt"
	})).Return(nil)
	objects.On("GetTags", mock.Anything, "u1/c1/notes.txt").Return(map[string]string{
		"user_id": "u1", "chat_id": "c1", "type": "UploadedDocument", "status": StatusProcessing,
	}, nil)
	objects.On("SetTags", mock.Anything, "u1/c1/notes.txt", map[string]string{
		"user_id": "u1", "chat_id": "c1", "type": "UploadedDocument", "status": StatusIndexed,
	}).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, IngestTaskPayload{
		ObjectKey: "u1/c1/notes.txt", UserID: "u1", ChatID: "c1",
	}))

	assert.NoError(t, err)
	objects.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestHandleMessage_EmbedFailureStampsError(t *testing.T) {
	objects := new(MockObjectSource)
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	consumer := NewIngestConsumer(objects, embedder, store)

	objects.On("Fetch", mock.Anything, "u1/c1/doc.txt").Return([]byte("some content"), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))
	objects.On("GetTags", mock.Anything, "u1/c1/doc.txt").Return(map[string]string{"status": StatusProcessing}, nil)
	objects.On("SetTags", mock.Anything, "u1/c1/doc.txt", map[string]string{"status": StatusError}).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, IngestTaskPayload{
		ObjectKey: "u1/c1/doc.txt", UserID: "u1", ChatID: "c1",
	}))

	assert.NoError(t, err)
	objects.AssertExpectations(t)
	store.AssertNotCalled(t, "StoreChunk", mock.Anything, mock.Anything)
}

func TestHandleMessage_FetchFailureStampsError(t *testing.T) {
	objects := new(MockObjectSource)
	consumer := NewIngestConsumer(objects, new(MockEmbedder), new(MockVectorStore))

	objects.On("Fetch", mock.Anything, "u1/c1/doc.txt").Return(nil, errors.New("NoSuchKey"))
	objects.On("GetTags", mock.Anything, "u1/c1/doc.txt").Return(map[string]string{"status": StatusProcessing}, nil)
	objects.On("SetTags", mock.Anything, "u1/c1/doc.txt", map[string]string{"status": StatusError}).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, IngestTaskPayload{
		ObjectKey: "u1/c1/doc.txt", UserID: "u1", ChatID: "c1",
	}))

	assert.NoError(t, err)
}

func TestHandleMessage_TagWriteFailureAfterDeletionIsSwallowed(t *testing.T) {
	objects := new(MockObjectSource)
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	consumer := NewIngestConsumer(objects, embedder, store)

	objects.On("Fetch", mock.Anything, "u1/c1/doc.txt").Return([]byte("content"), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.3}, nil)
	store.On("StoreChunk", mock.Anything, mock.Anything).Return(nil)
	// The chat was deleted while the ingestion ran; the object is gone.
	objects.On("GetTags", mock.Anything, "u1/c1/doc.txt").Return(nil, errors.New("NoSuchKey"))

	err := consumer.HandleMessage(taskMessage(t, IngestTaskPayload{
		ObjectKey: "u1/c1/doc.txt", UserID: "u1", ChatID: "c1",
	}))

	assert.NoError(t, err)
	objects.AssertNotCalled(t, "SetTags", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_SetTagsFailureIsSwallowed(t *testing.T) {
	objects := new(MockObjectSource)
	embedder := new(MockEmbedder)
	store := new(MockVectorStore)
	consumer := NewIngestConsumer(objects, embedder, store)

	objects.On("Fetch", mock.Anything, "u1/c1/doc.txt").Return([]byte("content"), nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.3}, nil)
	store.On("StoreChunk", mock.Anything, mock.Anything).Return(nil)
	objects.On("GetTags", mock.Anything, "u1/c1/doc.txt").Return(map[string]string{"status": StatusProcessing}, nil)
	objects.On("SetTags", mock.Anything, "u1/c1/doc.txt", mock.Anything).Return(errors.New("NoSuchKey"))

	err := consumer.HandleMessage(taskMessage(t, IngestTaskPayload{
		ObjectKey: "u1/c1/doc.txt", UserID: "u1", ChatID: "c1",
	}))

	assert.NoError(t, err)
}
