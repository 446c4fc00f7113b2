package file

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"gurukul/internal/middleware"
	"gurukul/internal/worker"
)

type Handler struct {
	service       *Service
	defaultUserID string
	maxUploadSize int64
}

func NewHandler(service *Service, defaultUserID string, maxUploadSizeMB int64) *Handler {
	return &Handler{
		service:       service,
		defaultUserID: defaultUserID,
		maxUploadSize: maxUploadSizeMB << 20,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large or malformed form", http.StatusBadRequest)
		return
	}

	chatID := r.FormValue("chat_id")
	if chatID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "chat_id is required", http.StatusBadRequest)
		return
	}

	userID := h.defaultUserID
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	f, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Filename == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Uploaded file must have a filename", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read upload body", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to read uploaded file", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Uploaded file is empty", http.StatusBadRequest)
		return
	}

	objectKey, err := h.service.Upload(ctx, userID, chatID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		slog.ErrorContext(ctx, "upload failed", "filename", header.Filename, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Could not store file", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]string{
		"object_key": objectKey,
		"message":    "Upload successful. Ingestion started.",
		"status":     worker.StatusProcessing,
	})
}

func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, TypeUploadedDocument)
}

func (h *Handler) ListGenerated(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, TypeGeneratedContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, expectedType string) {
	userID := h.defaultUserID
	chatID := r.PathValue("chat_id")
	ctx := middleware.WithChatIdentity(r.Context(), userID, chatID)

	files, err := h.service.ListByType(ctx, userID, chatID, expectedType)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list files", "type", expectedType, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, files)
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
