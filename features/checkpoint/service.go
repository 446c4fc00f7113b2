package checkpoint

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"gurukul/internal/agent"
)

// Collection is the narrow slice of a document collection the deletion
// logic needs.
type Collection interface {
	DeleteMany(ctx context.Context, filter any) (int64, error)
	CountDocuments(ctx context.Context, filter any) (int64, error)
}

// Database abstracts the checkpoint backing database. The checkpointing
// framework owns the schema, so collection names and field layouts are
// discovered at call time instead of being assumed.
type Database interface {
	ListCollectionNames(ctx context.Context) ([]string, error)
	Collection(name string) Collection
}

type Service struct {
	db Database
}

func NewService(db Database) *Service {
	return &Service{db: db}
}

// DeleteChat removes every checkpoint record belonging to one chat. Two
// passes run: collections whose name contains "checkpoint" are matched
// on the composite thread_id, then every collection in the database is
// matched on bare user_id and chat_id fields. Counts from both passes
// are summed. Failure is soft: a broken first pass or an unreachable
// database yields 0, and a single collection failing the second pass is
// skipped so the rest still get scanned.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) int64 {
	names, err := s.db.ListCollectionNames(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list checkpoint collections, skipping checkpoint deletion", "error", err)
		return 0
	}

	threadID := agent.ThreadID(userID, chatID)
	var total int64

	for _, name := range names {
		if !strings.Contains(name, "checkpoint") {
			continue
		}
		n, err := s.db.Collection(name).DeleteMany(ctx, bson.D{{Key: "thread_id", Value: threadID}})
		if err != nil {
			slog.WarnContext(ctx, "checkpoint deletion by thread id failed", "collection", name, "error", err)
			return 0
		}
		total += n
	}

	bareFilter := bson.D{{Key: "user_id", Value: userID}, {Key: "chat_id", Value: chatID}}
	for _, name := range names {
		n, err := s.db.Collection(name).DeleteMany(ctx, bareFilter)
		if err != nil {
			slog.WarnContext(ctx, "bare-field checkpoint scan failed for collection, continuing", "collection", name, "error", err)
			continue
		}
		total += n
	}
	return total
}

// DeleteUser is the per-user analogue of DeleteChat: prefix match on
// thread_id in checkpoint-named collections, then bare user_id across
// the whole database.
func (s *Service) DeleteUser(ctx context.Context, userID string) int64 {
	names, err := s.db.ListCollectionNames(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list checkpoint collections, skipping checkpoint deletion", "error", err)
		return 0
	}

	prefix := threadPrefixFilter(userID)
	var total int64

	for _, name := range names {
		if !strings.Contains(name, "checkpoint") {
			continue
		}
		n, err := s.db.Collection(name).DeleteMany(ctx, prefix)
		if err != nil {
			slog.WarnContext(ctx, "checkpoint deletion by thread prefix failed", "collection", name, "error", err)
			return 0
		}
		total += n
	}

	for _, name := range names {
		n, err := s.db.Collection(name).DeleteMany(ctx, bson.D{{Key: "user_id", Value: userID}})
		if err != nil {
			slog.WarnContext(ctx, "bare-field checkpoint scan failed for collection, continuing", "collection", name, "error", err)
			continue
		}
		total += n
	}
	return total
}

// CountChat counts checkpoint records matched on thread_id in
// checkpoint-named collections only. The bare-field pass that DeleteChat
// performs is deliberately absent here, so counts can undershoot what a
// delete would remove.
func (s *Service) CountChat(ctx context.Context, userID, chatID string) int64 {
	return s.count(ctx, bson.D{{Key: "thread_id", Value: agent.ThreadID(userID, chatID)}})
}

// CountUser counts checkpoint records whose thread_id carries the user's
// prefix. Same coverage caveat as CountChat.
func (s *Service) CountUser(ctx context.Context, userID string) int64 {
	return s.count(ctx, threadPrefixFilter(userID))
}

func (s *Service) count(ctx context.Context, filter bson.D) int64 {
	names, err := s.db.ListCollectionNames(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list checkpoint collections, reporting zero checkpoints", "error", err)
		return 0
	}

	var total int64
	for _, name := range names {
		if !strings.Contains(name, "checkpoint") {
			continue
		}
		n, err := s.db.Collection(name).CountDocuments(ctx, filter)
		if err != nil {
			slog.WarnContext(ctx, "checkpoint count failed", "collection", name, "error", err)
			return 0
		}
		total += n
	}
	return total
}

func threadPrefixFilter(userID string) bson.D {
	return bson.D{{Key: "thread_id", Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(userID) + "_"}}}
}
