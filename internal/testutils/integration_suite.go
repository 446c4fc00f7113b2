package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"gurukul/internal/config"
)

// IntegrationSuite spins up the full backing-store stack in containers
// for tests that exercise real dependencies.
type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Mongo    *mongo.Client
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer

	pgHost    string
	pgPort    int
	mongoURI  string
	wHost     string
	minioHost string
	nsqdHost  string
	nsqdHTTP  string

	pgContainer       *postgres.PostgresContainer
	mongoContainer    testcontainers.Container
	weaviateContainer testcontainers.Container
	minioContainer    testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("gurukul_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgHost = pgHost
	s.pgPort = pgPort.Int()

	// Run Migrations
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	migrationPath := fmt.Sprintf("file://%s/../../migrations", basepath)

	m, err := migrate.New(migrationPath, connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	// 2. Mongo
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.mongoContainer = mongoC

	mongoHost, err := mongoC.Host(ctx)
	require.NoError(s.T, err)
	mongoPort, err := mongoC.MappedPort(ctx, "27017")
	require.NoError(s.T, err)
	s.mongoURI = fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort.Port())

	s.Mongo, err = mongo.Connect(options.Client().ApplyURI(s.mongoURI))
	require.NoError(s.T, err)

	// 3. Weaviate
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "semitechnologies/weaviate:latest",
			ExposedPorts: []string{"8080/tcp", "50051/tcp"},
			Env: map[string]string{
				"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
				"DEFAULT_VECTORIZER_MODULE":               "none",
				"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
			},
			WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	wHost, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	wPort, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)
	s.wHost = fmt.Sprintf("%s:%s", wHost, wPort.Port())

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{Host: s.wHost, Scheme: "http"})
	require.NoError(s.T, err)

	// 4. MinIO
	minioC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.minioContainer = minioC

	minioHost, err := minioC.Host(ctx)
	require.NoError(s.T, err)
	minioPort, err := minioC.MappedPort(ctx, "9000")
	require.NoError(s.T, err)
	s.minioHost = fmt.Sprintf("%s:%s", minioHost, minioPort.Port())

	// 5. NSQ
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nsqio/nsq:v1.3.0",
			ExposedPorts: []string{"4150/tcp", "4151/tcp"},
			Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
			WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	nsqHTTPPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)
	s.nsqdHost = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())
	s.nsqdHTTP = fmt.Sprintf("%s:%s", nsqHost, nsqHTTPPort.Port())

	s.NSQ, err = nsq.NewProducer(s.nsqdHost, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a config pointing at the containers. The ingest
// worker is disabled because no lookupd runs in the suite.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		MongoURI:                   s.mongoURI,
		MongoDB:                    "gurukul_test",
		DBHost:                     s.pgHost,
		DBPort:                     s.pgPort,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "gurukul_test",
		WeaviateHost:               s.wHost,
		WeaviateScheme:             "http",
		MinioEndpoint:              s.minioHost,
		MinioAccessKey:             "minioadmin",
		MinioSecretKey:             "minioadmin",
		MinioBucket:                "gurukul-test",
		NSQDHost:                   s.nsqdHost,
		NSQDHTTP:                   s.nsqdHTTP,
		DefaultUserID:              "1",
		BaseChatID:                 1,
		EnableAPI:                  true,
		EnableIngestWorker:         false,
		MigrationPath:              "file://migrations",
		ServerPort:                 8081,
		MaxUploadSizeMB:            50,
		BootstrapRetryAttempts:     10,
		BootstrapRetryDelaySeconds: 2,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.Mongo != nil {
		_ = s.Mongo.Disconnect(ctx)
	}
	for _, c := range []testcontainers.Container{
		s.mongoContainer, s.weaviateContainer, s.minioContainer, s.nsqContainer,
	} {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(ctx)
	}
}
