package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Deployment)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, 1500, cfg.Summarizer.ChunkSize)
	assert.Equal(t, 200, cfg.Summarizer.ChunkOverlap)
	assert.Equal(t, 1500, cfg.Summarizer.TokenMax)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.DocIntel.Enabled())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_MAX_RETRIES=5\nDB_NAME=erp\n"), 0o600))
	t.Setenv("DB_MAX_RETRIES", "")
	os.Unsetenv("DB_MAX_RETRIES")
	os.Unsetenv("DB_NAME")
	t.Cleanup(func() {
		os.Unsetenv("DB_MAX_RETRIES")
		os.Unsetenv("DB_NAME")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, "erp", cfg.Database.Name)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("explicit URL wins", func(t *testing.T) {
		c := DatabaseConfig{URL: "postgres://a@b/c", Name: "ignored"}
		assert.Equal(t, "postgres://a@b/c", c.DSN())
	})

	t.Run("built from parts", func(t *testing.T) {
		c := DatabaseConfig{Host: "db", Port: 5433, Name: "erp", User: "u", Password: "p@ss", SSLMode: "require"}
		assert.Equal(t, "postgres://u:p%40ss@db:5433/erp?sslmode=require", c.DSN())
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Summarizer: SummarizerConfig{ChunkSize: 1500, ChunkOverlap: 200}}
	}

	t.Run("reports missing llm settings", func(t *testing.T) {
		err := base().Validate(NeedLLM)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AZUREOPENAI_API_KEY")
		assert.Contains(t, err.Error(), "AZUREOPENAI_ENDPOINT")
	})

	t.Run("database accepts DB_NAME", func(t *testing.T) {
		c := base()
		c.Database.Name = "erp"
		assert.NoError(t, c.Validate(NeedDatabase))
	})

	t.Run("overlap must be below chunk size", func(t *testing.T) {
		c := base()
		c.Summarizer.ChunkOverlap = 1500
		assert.Error(t, c.Validate())
	})
}
