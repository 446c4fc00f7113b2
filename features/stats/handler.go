package stats

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gurukul/internal/middleware"
)

type Handler struct {
	service       *Service
	defaultUserID string
}

func NewHandler(service *Service, defaultUserID string) *Handler {
	return &Handler{service: service, defaultUserID: defaultUserID}
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := h.defaultUserID
	ctx := middleware.WithChatIdentity(r.Context(), userID, "")

	overview, err := h.service.Overview(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build stats overview", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		resp := map[string]interface{}{
			"error":         map[string]string{"code": "INTERNAL_ERROR", "message": "Internal Server Error"},
			"correlationId": middleware.GetCorrelationID(ctx),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(ctx, "failed to encode error response", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(overview); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
