package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gurukul/features/chat"
	"gurukul/internal/adapter/minio"
)

type MockChatSource struct {
	mock.Mock
}

func (m *MockChatSource) ListChats(ctx context.Context, userID string) ([]chat.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Summary), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]minio.ObjectInfo), args.Error(1)
}

type MockVectorCounter struct {
	mock.Mock
}

func (m *MockVectorCounter) Count(ctx context.Context, userID, chatID string) int {
	return m.Called(ctx, userID, chatID).Int(0)
}

type MockCheckpointCounter struct {
	mock.Mock
}

func (m *MockCheckpointCounter) CountUser(ctx context.Context, userID string) int64 {
	return m.Called(ctx, userID).Get(0).(int64)
}

func TestOverview_AggregatesAllStores(t *testing.T) {
	chats := new(MockChatSource)
	objects := new(MockObjectStore)
	vectors := new(MockVectorCounter)
	checkpoints := new(MockCheckpointCounter)
	svc := NewService(chats, objects, vectors, checkpoints)

	chats.On("ListChats", mock.Anything, "u1").Return([]chat.Summary{
		{ChatID: "1", MessageCount: 4},
		{ChatID: "2", MessageCount: 6},
	}, nil)
	objects.On("List", mock.Anything, "u1/").Return([]minio.ObjectInfo{{Key: "u1/1/a.pdf"}}, nil)
	vectors.On("Count", mock.Anything, "u1", "").Return(42)
	checkpoints.On("CountUser", mock.Anything, "u1").Return(int64(3))

	overview, err := svc.Overview(context.Background(), "u1")

	assert.NoError(t, err)
	assert.Equal(t, &Overview{
		UserID:          "u1",
		ChatCount:       2,
		MessageCount:    10,
		FileCount:       1,
		EmbeddingCount:  42,
		CheckpointCount: 3,
	}, overview)
}

func TestOverview_ChatListFailurePropagates(t *testing.T) {
	chats := new(MockChatSource)
	svc := NewService(chats, new(MockObjectStore), new(MockVectorCounter), new(MockCheckpointCounter))

	chats.On("ListChats", mock.Anything, "u1").Return(nil, errors.New("mongo down"))

	_, err := svc.Overview(context.Background(), "u1")

	assert.Error(t, err)
}
