package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeCall struct {
	collection string
	op         string
	filter     bson.D
}

type fakeDatabase struct {
	names    []string
	listErr  error
	deleted  map[string]int64
	counted  map[string]int64
	failing  map[string]error
	calls    []fakeCall
}

func (f *fakeDatabase) ListCollectionNames(_ context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeDatabase) Collection(name string) Collection {
	return &fakeCollection{db: f, name: name}
}

type fakeCollection struct {
	db   *fakeDatabase
	name string
}

func (f *fakeCollection) DeleteMany(_ context.Context, filter any) (int64, error) {
	f.db.calls = append(f.db.calls, fakeCall{collection: f.name, op: "delete", filter: filter.(bson.D)})
	if err := f.db.failing[f.name]; err != nil {
		return 0, err
	}
	return f.db.deleted[f.name], nil
}

func (f *fakeCollection) CountDocuments(_ context.Context, filter any) (int64, error) {
	f.db.calls = append(f.db.calls, fakeCall{collection: f.name, op: "count", filter: filter.(bson.D)})
	if err := f.db.failing[f.name]; err != nil {
		return 0, err
	}
	return f.db.counted[f.name], nil
}

func TestDeleteChat_SumsBothPasses(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"checkpoints", "checkpoint_writes", "chat_history"},
		deleted: map[string]int64{"checkpoints": 2, "checkpoint_writes": 1, "chat_history": 1},
	}
	svc := NewService(db)

	// Pass one hits the two checkpoint-named collections (2+1), pass two
	// hits all three again on bare fields (2+1+1).
	got := svc.DeleteChat(context.Background(), "u1", "c1")
	assert.Equal(t, int64(7), got)

	assert.Len(t, db.calls, 5)
	assert.Equal(t, bson.D{{Key: "thread_id", Value: "u1_c1"}}, db.calls[0].filter)
	assert.Equal(t, "checkpoints", db.calls[0].collection)
	assert.Equal(t, bson.D{{Key: "user_id", Value: "u1"}, {Key: "chat_id", Value: "c1"}}, db.calls[2].filter)
}

func TestDeleteChat_ListFailureIsSoft(t *testing.T) {
	db := &fakeDatabase{listErr: errors.New("connection refused")}
	got := NewService(db).DeleteChat(context.Background(), "u1", "c1")
	assert.Equal(t, int64(0), got)
}

func TestDeleteChat_ThreadIDPassFailureReturnsZero(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"checkpoints"},
		failing: map[string]error{"checkpoints": errors.New("boom")},
	}
	got := NewService(db).DeleteChat(context.Background(), "u1", "c1")
	assert.Equal(t, int64(0), got)
}

func TestDeleteChat_BareFieldFailureIsSkippedPerCollection(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"broken", "chat_history"},
		deleted: map[string]int64{"chat_history": 3},
		failing: map[string]error{"broken": errors.New("schema mismatch")},
	}
	got := NewService(db).DeleteChat(context.Background(), "u1", "c1")
	assert.Equal(t, int64(3), got)
}

func TestDeleteUser_UsesThreadPrefixAndBareUserID(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"checkpoints", "chat_history"},
		deleted: map[string]int64{"checkpoints": 4, "chat_history": 2},
	}
	got := NewService(db).DeleteUser(context.Background(), "u1")
	// 4 via thread prefix plus 4+2 via bare user_id.
	assert.Equal(t, int64(10), got)

	prefix, ok := db.calls[0].filter[0].Value.(bson.Regex)
	assert.True(t, ok)
	assert.Equal(t, "^u1_", prefix.Pattern)
	assert.Equal(t, bson.D{{Key: "user_id", Value: "u1"}}, db.calls[1].filter)
}

func TestCountChat_SkipsBareFieldPass(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"checkpoints", "chat_history"},
		counted: map[string]int64{"checkpoints": 2, "chat_history": 9},
	}
	got := NewService(db).CountChat(context.Background(), "u1", "c1")

	// Only the checkpoint-named collection is counted, on thread_id.
	assert.Equal(t, int64(2), got)
	assert.Len(t, db.calls, 1)
	assert.Equal(t, "checkpoints", db.calls[0].collection)
	assert.Equal(t, bson.D{{Key: "thread_id", Value: "u1_c1"}}, db.calls[0].filter)
}

func TestCountUser_FailureReportsZero(t *testing.T) {
	db := &fakeDatabase{
		names:   []string{"checkpoints"},
		failing: map[string]error{"checkpoints": errors.New("timeout")},
	}
	got := NewService(db).CountUser(context.Background(), "u1")
	assert.Equal(t, int64(0), got)
}
