package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	// Mongo holds chat history and the agent framework's checkpoints.
	MongoURI string `envconfig:"MONGO_DB_URI" default:"mongodb://localhost:27017"`
	MongoDB  string `envconfig:"MONGO_DB_NAME" default:"gurukul"`

	// Postgres holds model settings.
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"gurukul"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"gurukul"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	MinioBucket    string `envconfig:"MINIO_BUCKET_NAME" default:"gurukul"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Model catalog defaults, overridable through the settings store.
	ModelProvider string `envconfig:"MODEL_PROVIDER" default:"google"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3.2"`
	GroqModel     string `envconfig:"GROQ_MODEL_NAME" default:"llama-3.1-70b-versatile"`
	GoogleModel   string `envconfig:"GOOGLE_MODEL_NAME" default:"gemini-pro"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`

	// Requests that carry no explicit user run against this identity.
	DefaultUserID string `envconfig:"USER_ID" default:"1"`
	BaseChatID    int    `envconfig:"CHAT_ID" default:"1"`

	EnableAPI          bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	ServerPort      int   `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64 `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("%w: MONGO_DB_URI", ErrMissingRequired)
	}
	if c.MinioEndpoint == "" {
		return fmt.Errorf("%w: MINIO_ENDPOINT", ErrMissingRequired)
	}
	if c.MinioBucket == "" {
		return fmt.Errorf("%w: MINIO_BUCKET_NAME", ErrMissingRequired)
	}
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DefaultUserID == "" {
		return fmt.Errorf("%w: USER_ID", ErrMissingRequired)
	}
	return nil
}
