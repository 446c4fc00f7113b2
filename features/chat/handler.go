package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gurukul/internal/agent"
	"gurukul/internal/middleware"
)

type Handler struct {
	service       *Service
	defaultUserID string
}

func NewHandler(service *Service, defaultUserID string) *Handler {
	return &Handler{service: service, defaultUserID: defaultUserID}
}

// userID resolves the acting user. Authentication is out of scope, so a
// configured default identity stands in for all requests.
func (h *Handler) userID(r *http.Request) string {
	return h.defaultUserID
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	ctx := middleware.WithChatIdentity(r.Context(), userID, "")

	chats, err := h.service.ListChats(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list chats", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []Summary{}
	}
	h.writeJSON(ctx, w, http.StatusOK, chats)
}

func (h *Handler) NextID(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	ctx := middleware.WithChatIdentity(r.Context(), userID, "")

	next, err := h.service.NextChatID(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute next chat id", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"next_chat_id": next})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	chatID := r.PathValue("chat_id")
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	messages, err := h.service.History(ctx, userID, chatID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load chat history", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	h.writeJSON(ctx, w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	chatID := r.PathValue("chat_id")
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	replies, err := h.service.SendMessage(ctx, userID, chatID, req.Message)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeError(ctx, w, "VALIDATION_ERROR", "Message cannot be empty", http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "agent turn failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Agent failed to respond", http.StatusInternalServerError)
		return
	}
	if replies == nil {
		replies = []agent.Message{}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"messages": replies})
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	chatID := r.PathValue("chat_id")
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	var req struct {
		ChatName string `json:"chat_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatName == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "chat_name is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Rename(ctx, userID, chatID, req.ChatName); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Chat not found or no changes made", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to rename chat", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Chat name updated successfully",
		"chat_id":   chatID,
		"chat_name": req.ChatName,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	chatID := r.PathValue("chat_id")
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	result, err := h.service.DeleteChat(ctx, userID, chatID)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Chat not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to delete chat", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to delete chat", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf(
			"Chat deleted successfully. Removed %d messages, %d files, %d embeddings, and %d checkpoints.",
			result.MessagesDeleted, result.FilesDeleted, result.EmbeddingsDeleted, result.CheckpointsDeleted,
		),
		"deleted_files_count":       result.FilesDeleted,
		"deleted_messages_count":    result.MessagesDeleted,
		"deleted_embeddings_count":  result.EmbeddingsDeleted,
		"deleted_checkpoints_count": result.CheckpointsDeleted,
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
