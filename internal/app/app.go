package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"gurukul/features/chat"
	"gurukul/features/checkpoint"
	"gurukul/features/file"
	"gurukul/features/stats"
	"gurukul/internal/adapter/gemini"
	wstore "gurukul/internal/adapter/weaviate"
	"gurukul/internal/agent"
	"gurukul/internal/config"
	"gurukul/internal/middleware"
	"gurukul/internal/retrieval"
	"gurukul/internal/settings"
	"gurukul/internal/worker"
)

// VectorStore is everything the app needs from the vector index.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	StoreChunk(ctx context.Context, chunk worker.Chunk) error
	DeleteByChat(ctx context.Context, userID, chatID string) int
	DeleteByUser(ctx context.Context, userID string) int
	Count(ctx context.Context, userID, chatID string) int
	Search(ctx context.Context, vec []float32, userID, chatID string, limit int) ([]wstore.SearchResult, error)
}

// ObjectStore is the full object storage surface shared by the file,
// chat, and worker wiring.
type ObjectStore interface {
	chat.ObjectStore
	file.ObjectStore
	worker.ObjectSource
}

// TaskPublisher queues ingestion work.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	ChatService    *chat.Service
	IngestConsumer *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	mongoDB *mongo.Database,
	objects ObjectStore,
	vecStore VectorStore,
	taskPub TaskPublisher,
) (*App, error) {
	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	seedSettings(cfg, settingsService)
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Dynamic (API key and model names resolved per call)
	geminiEmbedder := gemini.NewDynamicEmbedder(settingsService)
	geminiGenerator := gemini.NewGenerator(settingsService)

	// Agent
	retrievalService := retrieval.NewService(geminiEmbedder, vecStore)
	contentSaver := file.NewGeneratedStore(objects)
	checkpointer := agent.NewMongoCheckpointer(mongoDB, "checkpoints")
	runner := agent.NewRunner(geminiGenerator, retrievalService, contentSaver, checkpointer)

	// Feature: Checkpoint
	checkpointService := checkpoint.NewService(checkpoint.NewMongoDatabase(mongoDB))

	// Feature: Chat
	chatRepo := chat.NewMongoRepo(mongoDB, "chat_history")
	chatService := chat.NewService(chatRepo, objects, vecStore, checkpointService, runner, cfg.BaseChatID)
	chatHandler := chat.NewHandler(chatService, cfg.DefaultUserID)

	// Feature: File
	fileService := file.NewService(objects, taskPub)
	fileHandler := file.NewHandler(fileService, cfg.DefaultUserID, cfg.MaxUploadSizeMB)

	// Feature: Stats
	statsService := stats.NewService(chatService, objects, vecStore, checkpointService)
	statsHandler := stats.NewHandler(statsService, cfg.DefaultUserID)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /api/chats", middleware.CorrelationID(enableCORS(chatHandler.List)))
	mux.Handle("GET /api/chats/next-id", middleware.CorrelationID(enableCORS(chatHandler.NextID)))
	mux.Handle("GET /api/chats/{chat_id}", middleware.CorrelationID(enableCORS(chatHandler.History)))
	mux.Handle("POST /api/chats/{chat_id}/messages", middleware.CorrelationID(enableCORS(chatHandler.SendMessage)))
	mux.Handle("PUT /api/chats/{chat_id}/name", middleware.CorrelationID(enableCORS(chatHandler.Rename)))
	mux.Handle("DELETE /api/chats/{chat_id}", middleware.CorrelationID(enableCORS(chatHandler.Delete)))

	mux.Handle("POST /api/files/upload", middleware.CorrelationID(enableCORS(fileHandler.Upload)))
	mux.Handle("GET /api/files/uploads/{chat_id}", middleware.CorrelationID(enableCORS(fileHandler.ListUploads)))
	mux.Handle("GET /api/files/generated/{chat_id}", middleware.CorrelationID(enableCORS(fileHandler.ListGenerated)))

	mux.Handle("GET /api/settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /api/settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /api/models", middleware.CorrelationID(enableCORS(modelsHandler(cfg))))
	mux.Handle("GET /api/stats", middleware.CorrelationID(enableCORS(statsHandler.Overview)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Worker (Ingest Consumer)
	ingestConsumer := worker.NewIngestConsumer(objects, geminiEmbedder, vecStore)

	return &App{
		Handler:        mux,
		ChatService:    chatService,
		IngestConsumer: ingestConsumer,
		port:           cfg.ServerPort,
	}, nil
}

// seedSettings copies the environment's Gemini API key into the
// settings store when the store has none, so a fresh install works
// without touching the settings endpoint first.
func seedSettings(cfg *config.Config, svc *settings.Service) {
	if cfg.GeminiAPIKey == "" {
		return
	}

	ctx := context.Background()
	set, err := svc.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}
	if set.GeminiAPIKey != "" {
		return
	}

	set.GeminiAPIKey = cfg.GeminiAPIKey
	if err := svc.Update(ctx, set); err != nil {
		slog.Warn("failed to seed gemini api key", "error", err)
		return
	}
	slog.Info("seeded gemini api key from environment")
}

func modelsHandler(cfg *config.Config) http.HandlerFunc {
	type modelInfo struct {
		Provider    string `json:"provider"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}

	models := []modelInfo{
		{Provider: "ollama", Name: cfg.OllamaModel, DisplayName: "Ollama - " + cfg.OllamaModel},
		{Provider: "groq", Name: cfg.GroqModel, DisplayName: "Groq - " + cfg.GroqModel},
		{Provider: "google", Name: cfg.GoogleModel, DisplayName: "Google - " + cfg.GoogleModel},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"models": models}); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
