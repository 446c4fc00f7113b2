package weaviate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"gurukul/internal/vector"
	"gurukul/internal/worker"
)

// scanLimit bounds the id scan before a bulk delete. Large enough for
// realistic chat sizes; not a completeness guarantee for pathological
// collections.
const scanLimit = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}

func (s *Store) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithProperties(map[string]interface{}{
			"content":    chunk.Content,
			"userId":     chunk.UserID,
			"chatId":     chunk.ChatID,
			"objectKey":  chunk.ObjectKey,
			"chunkIndex": chunk.ChunkIndex,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

// DeleteByChat removes every embedding point owned by the chat and
// returns how many were removed. Failures are soft: any client or
// network error is logged and reported as zero, never escalated.
func (s *Store) DeleteByChat(ctx context.Context, userID, chatID string) int {
	return s.deleteMatching(ctx, chatFilter(userID, chatID))
}

// DeleteByUser removes every embedding point owned by the user across
// all chats. Same soft-failure policy as DeleteByChat.
func (s *Store) DeleteByUser(ctx context.Context, userID string) int {
	return s.deleteMatching(ctx, userFilter(userID))
}

func (s *Store) deleteMatching(ctx context.Context, where *filters.WhereBuilder) int {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(vector.ClassName).Do(ctx)
	if err != nil {
		slog.WarnContext(ctx, "vector class existence check failed", "error", err)
		return 0
	}
	if !exists {
		slog.WarnContext(ctx, "vector class does not exist", "class", vector.ClassName)
		return 0
	}

	ids, err := s.collectIDs(ctx, where)
	if err != nil {
		slog.ErrorContext(ctx, "failed to scan embedding points", "error", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	_, err = s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"id"}).
			WithOperator(filters.ContainsAny).
			WithValueText(ids...)).
		Do(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete embedding points", "error", err, "count", len(ids))
		return 0
	}

	return len(ids)
}

func (s *Store) collectIDs(ctx context.Context, where *filters.WhereBuilder) ([]string, error) {
	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithLimit(scanLimit).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var ids []string
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if points, ok := data[vector.ClassName].([]interface{}); ok {
			for _, p := range points {
				props, ok := p.(map[string]interface{})
				if !ok {
					continue
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if id, ok := additional["id"].(string); ok {
						ids = append(ids, id)
					}
				}
			}
		}
	}
	return ids, nil
}

// Count reports how many points match the user, narrowed to one chat
// when chatID is non-empty. Errors are logged and reported as zero.
func (s *Store) Count(ctx context.Context, userID, chatID string) int {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(vector.ClassName).Do(ctx)
	if err != nil || !exists {
		return 0
	}

	where := userFilter(userID)
	if chatID != "" {
		where = chatFilter(userID, chatID)
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count embedding points", "error", err)
		return 0
	}
	if len(res.Errors) > 0 {
		slog.ErrorContext(ctx, "failed to count embedding points", "errors", fmt.Sprintf("%v", res.Errors))
		return 0
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count)
					}
				}
			}
		}
	}
	return 0
}

// SearchResult is one retrieved chunk with its distance-derived score.
type SearchResult struct {
	Content   string
	ObjectKey string
	Score     float32
}

// Search returns the chat's chunks nearest to the query vector.
func (s *Store) Search(ctx context.Context, vec []float32, userID, chatID string, limit int) ([]SearchResult, error) {
	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithWhere(chatFilter(userID, chatID)).
		WithLimit(limit).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "objectKey"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []SearchResult
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if points, ok := data[vector.ClassName].([]interface{}); ok {
			for _, p := range points {
				props, ok := p.(map[string]interface{})
				if !ok {
					continue
				}
				r := SearchResult{}
				if content, ok := props["content"].(string); ok {
					r.Content = content
				}
				if key, ok := props["objectKey"].(string); ok {
					r.ObjectKey = key
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if certainty, ok := additional["certainty"].(float64); ok {
						r.Score = float32(certainty)
					}
				}
				results = append(results, r)
			}
		}
	}
	return results, nil
}

func userFilter(userID string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"userId"}).
		WithOperator(filters.Equal).
		WithValueString(userID)
}

func chatFilter(userID, chatID string) *filters.WhereBuilder {
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"userId"}).
				WithOperator(filters.Equal).
				WithValueString(userID),
			filters.Where().
				WithPath([]string{"chatId"}).
				WithOperator(filters.Equal).
				WithValueString(chatID),
		})
}
