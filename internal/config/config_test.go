package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: risk
  password: secret
  name: riskextract
ai:
  providers:
    - name: openai
      apiKey: sk-test
      model: gpt-4o
    - name: anthropic
      apiKey: sk-ant
      model: claude-sonnet-4-20250514
  maxRetries: 5
pipeline:
  concurrency: 8
  riskCategories: [technology, financial]
auth:
  apiKeys:
    acme: key-acme
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	require.Len(t, cfg.AI.Providers, 2)
	assert.Equal(t, "openai", cfg.AI.Providers[0].Name)
	assert.Equal(t, 5, cfg.AI.MaxRetries)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, []string{"technology", "financial"}, cfg.Pipeline.RiskCategories)
	assert.Equal(t, "key-acme", cfg.Auth.APIKeys["acme"])
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.Equal(t, 1000, cfg.AI.BackoffBaseMS)
	assert.Equal(t, 2.0, cfg.AI.BackoffFactor)
	assert.Equal(t, 0.2, cfg.AI.JitterFraction)
	assert.Equal(t, 2000, cfg.Pipeline.SegmentMaxTokens)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 0.85, cfg.Pipeline.SimilarityThreshold)
	assert.Equal(t, 0.1, cfg.Pipeline.CorroborationBonus)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSNHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t,
		"risk:secret@tcp(db.internal:5432)/riskextract?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
	assert.Equal(t,
		"host=db.internal port=5432 user=risk password=secret dbname=riskextract sslmode=disable",
		cfg.PostgresDSN())
}
