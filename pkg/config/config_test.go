package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Index.VectorDimensions)
	assert.Equal(t, 5, cfg.Index.ContextWindowRadius)
	assert.Equal(t, 3, cfg.Index.MaxContextsPerTerm)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, 200, cfg.Search.SnippetLength)
	assert.Equal(t, 0.3, cfg.Search.SemanticThreshold)
	assert.Equal(t, "document-ingest", cfg.Kafka.Topics.DocumentIngest)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	data := `
server:
  port: 9999
index:
  vectorDimensions: 64
  stopWords: [exhibit, herein]
  termWeights:
    easement: 1.9
search:
  maxResults: 10
  queryTimeout: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Index.VectorDimensions)
	assert.Equal(t, []string{"exhibit", "herein"}, cfg.Index.StopWords)
	assert.Equal(t, 1.9, cfg.Index.TermWeights["easement"])
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 5*time.Second, cfg.Search.QueryTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 200, cfg.Search.SnippetLength)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LX_SERVER_PORT", "7070")
	t.Setenv("LX_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LX_SEARCH_SEMANTIC_THRESHOLD", "0.45")
	t.Setenv("LX_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.45, cfg.Search.SemanticThreshold)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "lexsearch", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5433 user=u password=p dbname=lexsearch sslmode=disable",
		cfg.DSN())
}
