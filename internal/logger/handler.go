package logger

import (
	"context"
	"log/slog"

	"gurukul/internal/middleware"
)

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if id, ok := middleware.GetChatIdentity(ctx); ok {
		r.AddAttrs(slog.String("user_id", id.UserID), slog.String("chat_id", id.ChatID))
	}
	return h.Handler.Handle(ctx, r)
}
