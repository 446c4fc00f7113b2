package middleware

import "context"

const identityKey key = 1

// ChatIdentity is the composite key addressing all per-chat state. It is
// carried on the request context so tools running deep inside an agent
// turn know which chat they serve without threading both ids everywhere.
type ChatIdentity struct {
	UserID string
	ChatID string
}

func WithChatIdentity(ctx context.Context, userID, chatID string) context.Context {
	return context.WithValue(ctx, identityKey, ChatIdentity{UserID: userID, ChatID: chatID})
}

func GetChatIdentity(ctx context.Context) (ChatIdentity, bool) {
	id, ok := ctx.Value(identityKey).(ChatIdentity)
	return id, ok
}
