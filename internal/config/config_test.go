package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Qdrant:    QdrantConfig{Host: "localhost", Port: 6334},
		Embedding: EmbeddingConfig{Host: "localhost", Port: 8080},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing qdrant host",
			mutate:  func(c *Config) { c.Qdrant.Host = "" },
			wantErr: "qdrant host is required",
		},
		{
			name:    "invalid qdrant port",
			mutate:  func(c *Config) { c.Qdrant.Port = 0 },
			wantErr: "invalid qdrant port",
		},
		{
			name:    "missing embedding host",
			mutate:  func(c *Config) { c.Embedding.Host = "" },
			wantErr: "embedding host is required",
		},
		{
			name:    "invalid embedding port",
			mutate:  func(c *Config) { c.Embedding.Port = 70000 },
			wantErr: "invalid embedding port",
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero vector size",
			mutate:  func(c *Config) { c.Qdrant.VectorSize = -5 },
			wantErr: "vector size must be positive",
		},
		{
			name:    "zero embedding attempts",
			mutate:  func(c *Config) { c.Embedding.Attempts = -1 },
			wantErr: "embedding attempts must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 1024, cfg.Qdrant.VectorSize)
	assert.Equal(t, 5, cfg.Embedding.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad(t *testing.T) {
	t.Run("env variables satisfy required fields", func(t *testing.T) {
		t.Setenv("QDRANT_HOST", "qdrant.internal")
		t.Setenv("QDRANT_PORT", "6334")
		t.Setenv("EMBEDDING_HOST", "vectorizer.internal")
		t.Setenv("EMBEDDING_PORT", "9100")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
		assert.Equal(t, 6334, cfg.Qdrant.Port)
		assert.Equal(t, "vectorizer.internal", cfg.Embedding.Host)
		assert.Equal(t, 9100, cfg.Embedding.Port)
	})

	t.Run("missing required endpoint fails", func(t *testing.T) {
		t.Setenv("QDRANT_HOST", "")
		t.Setenv("EMBEDDING_HOST", "")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})

	t.Run("yaml file with env override", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := []byte("qdrant:\n  host: from-file\n  port: 6334\nembedding:\n  host: embed-file\n  port: 8080\n")
		require.NoError(t, os.WriteFile(path, content, 0600))

		t.Setenv("QDRANT_HOST", "from-env")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Qdrant.Host, "env must win over file")
		assert.Equal(t, "embed-file", cfg.Embedding.Host)
	})

	t.Run("nonexistent config path fails loudly", func(t *testing.T) {
		t.Setenv("QDRANT_HOST", "localhost")
		t.Setenv("QDRANT_PORT", "6334")
		t.Setenv("EMBEDDING_HOST", "localhost")
		t.Setenv("EMBEDDING_PORT", "8080")

		// A typoed --config path must not silently run on env vars alone.
		_, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open config file")
	})

	t.Run("env duration parsing", func(t *testing.T) {
		t.Setenv("QDRANT_HOST", "localhost")
		t.Setenv("QDRANT_PORT", "6334")
		t.Setenv("EMBEDDING_HOST", "localhost")
		t.Setenv("EMBEDDING_PORT", "8080")
		t.Setenv("EMBEDDING_TIMEOUT", "3s")
		t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "30s")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.Embedding.Timeout.Duration())
		assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Duration())
	})
}
