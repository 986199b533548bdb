// Package config provides configuration loading for vector-db-handler.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. The Qdrant and embedding service endpoints are
// required; the process refuses to start without them.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete vector-db-handler configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RequestTimeout bounds each inbound request, including the vector
	// store calls it triggers. The store layer itself does not retry.
	RequestTimeout Duration `koanf:"request_timeout"`
}

// QdrantConfig holds vector database connection settings.
type QdrantConfig struct {
	Host string `koanf:"host"`
	// Port is the Qdrant gRPC port (6334), not the HTTP REST port (6333).
	Port           int  `koanf:"port"`
	VectorSize     int  `koanf:"vector_size"`
	MaxMessageSize int  `koanf:"max_message_size"`
	UseTLS         bool `koanf:"use_tls"`
}

// EmbeddingConfig holds the external vectorizer service settings.
type EmbeddingConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// Attempts is the total number of tries per embedding call.
	Attempts int `koanf:"attempts"`
	// Timeout bounds each individual attempt.
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Qdrant host or port is missing/invalid (required, no default)
//   - Embedding host or port is missing/invalid (required, no default)
//   - Server port is not between 1 and 65535
//   - Timeouts are not positive
func (c *Config) Validate() error {
	if c.Qdrant.Host == "" {
		return errors.New("qdrant host is required (QDRANT_HOST)")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d (QDRANT_PORT)", c.Qdrant.Port)
	}
	if c.Embedding.Host == "" {
		return errors.New("embedding host is required (EMBEDDING_HOST)")
	}
	if c.Embedding.Port < 1 || c.Embedding.Port > 65535 {
		return fmt.Errorf("invalid embedding port: %d (EMBEDDING_PORT)", c.Embedding.Port)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout.Duration() <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Qdrant.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.Qdrant.VectorSize)
	}
	if c.Embedding.Attempts <= 0 {
		return fmt.Errorf("embedding attempts must be positive, got %d", c.Embedding.Attempts)
	}
	if c.Embedding.Timeout.Duration() <= 0 {
		return errors.New("embedding timeout must be positive")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
// Qdrant and embedding endpoints have no defaults: they are required.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(15 * time.Second)
	}

	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1024
	}
	if cfg.Qdrant.MaxMessageSize == 0 {
		cfg.Qdrant.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}

	if cfg.Embedding.Attempts == 0 {
		cfg.Embedding.Attempts = 5
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
