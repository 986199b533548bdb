// Vectordbd is a multi-tenant vector database handler.
//
// It fronts a Qdrant instance and an external text vectorizer service,
// exposing an HTTP API for ingesting text chunks, replacing and deleting
// them, and running similarity searches over per-user collections.
//
// Configuration is loaded from an optional YAML file and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	vectordbd
//
//	# Configure via environment
//	QDRANT_HOST=localhost QDRANT_PORT=6334 EMBEDDING_HOST=localhost EMBEDDING_PORT=8080 vectordbd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/AlirezaFazli29/vector-db-handler/internal/config"
	"github.com/AlirezaFazli29/vector-db-handler/internal/embeddings"
	httpserver "github.com/AlirezaFazli29/vector-db-handler/internal/http"
	"github.com/AlirezaFazli29/vector-db-handler/internal/logging"
	"github.com/AlirezaFazli29/vector-db-handler/internal/processor"
	"github.com/AlirezaFazli29/vector-db-handler/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vectordbd           Start the vector db handler\n")
			fmt.Fprintf(os.Stderr, "  vectordbd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("vectordbd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the handler and blocks until the context is cancelled.
//
// Initialization order: configuration, logger, Qdrant connection,
// embedding client, processor, HTTP server. Shutdown reverses it.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "vector-db-handler"},
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting vector db handler",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		VectorSize:     uint64(cfg.Qdrant.VectorSize),
		MaxMessageSize: cfg.Qdrant.MaxMessageSize,
		UseTLS:         cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to vector store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing vector store", zap.Error(err))
		}
	}()

	embedder, err := embeddings.NewClient(embeddings.Config{
		Host:    cfg.Embedding.Host,
		Port:    cfg.Embedding.Port,
		Timeout: cfg.Embedding.Timeout.Duration(),
		Retry: embeddings.RetryPolicy{
			Attempts: cfg.Embedding.Attempts,
		},
	}, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	proc := processor.New(embedder, store, logger.Named("processor"))

	server, err := httpserver.NewServer(proc, logger.Named("http"), &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
