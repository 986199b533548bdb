// Package http provides the HTTP API for the vector db handler.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AlirezaFazli29/vector-db-handler/internal/embeddings"
	"github.com/AlirezaFazli29/vector-db-handler/internal/processor"
	"github.com/AlirezaFazli29/vector-db-handler/internal/vectorstore"
)

const (
	defaultSearchLimit = 5
	defaultScrollLimit = 20
)

// Processor is the application surface the server exposes over HTTP.
type Processor interface {
	StoreText(ctx context.Context, userID, text string, attrs map[string]any) error
	StoreTexts(ctx context.Context, userID string, texts []string, attrs []map[string]any) error
	ReplaceChunk(ctx context.Context, userID, text string, docID, chunkID int64) (bool, error)
	Query(ctx context.Context, userID, query string, limit uint64, scoreThreshold float32) ([]processor.QueryResult, error)
	QueryOnDocs(ctx context.Context, userID, query string, docIDs []int64, limit uint64, scoreThreshold float32) ([]processor.QueryResult, error)
	Preview(ctx context.Context, userID string, limit uint32) ([]processor.RecordSummary, error)
	DeleteDoc(ctx context.Context, userID string, docID int64) error
	DeleteDocByTitle(ctx context.Context, userID, title string) error
	DeleteChunk(ctx context.Context, userID string, docID, chunkID int64) error
	DeleteAllData(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	ListCollections(ctx context.Context) ([]string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

// Server exposes the ingestion and retrieval API.
type Server struct {
	echo      *echo.Echo
	processor Processor
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new HTTP server.
func NewServer(proc Processor, logger *zap.Logger, cfg *Config) (*Server, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if cfg.RequestTimeout > 0 {
		timeout := cfg.RequestTimeout
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
				defer cancel()
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}
		})
	}

	s := &Server{
		echo:      e,
		processor: proc,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/upsert_data/", s.handleUpsert)
	s.echo.POST("/upsert_list_data/", s.handleUpsertList)
	s.echo.PUT("/update_data/", s.handleUpdate)

	s.echo.DELETE("/delete_doc/", s.handleDeleteDoc)
	s.echo.DELETE("/delete_doc_by_title/", s.handleDeleteDocByTitle)
	s.echo.DELETE("/delete_chunk/", s.handleDeleteChunk)
	s.echo.DELETE("/delete_user_collection_data/", s.handleDeleteUserData)
	s.echo.DELETE("/delete_user_collection/", s.handleDeleteUserCollection)

	s.echo.POST("/search_query/", s.handleSearch)
	s.echo.POST("/search_query_on_doc/", s.handleSearchOnDoc)

	s.echo.POST("/scroll_user_collection/", s.handleScroll)
	s.echo.GET("/list_users_collection/", s.handleListCollections)
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Message: "Service is up and running"})
}

// handleUpsert embeds one chunk and stores it with its metadata.
func (s *Server) handleUpsert(c echo.Context) error {
	var req UpsertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.StoreText(c.Request().Context(), req.UserID, req.Chunk, req.Metadata); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message":           "String data was successfully upserted to the vector database.",
		"User-Id":           req.UserID,
		"Upserted-Metadata": req.Metadata,
	})
}

// handleUpsertList embeds a batch of chunks and stores them with their
// metadata, one entry per chunk.
func (s *Server) handleUpsertList(c echo.Context) error {
	var req UpsertListRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.StoreTexts(c.Request().Context(), req.UserID, req.Chunks, req.Metadatas); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message":            "List of strings data were successfully upserted to the vector database.",
		"User-Id":            req.UserID,
		"Upserted-Metadatas": req.Metadatas,
	})
}

// handleUpdate re-embeds a chunk and replaces the stored vector in place.
// A missing chunk still reports success, matching the silent no-op of the
// underlying update.
func (s *Server) handleUpdate(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	updated, err := s.processor.ReplaceChunk(c.Request().Context(), req.UserID, req.Chunk, req.DocID, req.ChunkID)
	if err != nil {
		return s.mapError(c, err)
	}
	if !updated {
		s.logger.Warn("update matched no chunk",
			zap.String("user_id", req.UserID),
			zap.Int64("doc_id", req.DocID),
			zap.Int64("chunk_id", req.ChunkID))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("String data for DocId=%d ChunkId=%d was successfully updated.", req.DocID, req.ChunkID),
		"User-Id": req.UserID,
	})
}

func (s *Server) handleDeleteDoc(c echo.Context) error {
	var req DeleteDocRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.DeleteDoc(c.Request().Context(), req.UserID, req.DocID); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("All documents with DocId=%d were successfully deleted.", req.DocID),
		"User-Id": req.UserID,
	})
}

func (s *Server) handleDeleteDocByTitle(c echo.Context) error {
	var req DeleteDocByTitleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.DeleteDocByTitle(c.Request().Context(), req.UserID, req.DocTitle); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("All documents with Title = %q were successfully deleted.", req.DocTitle),
		"User-Id": req.UserID,
	})
}

func (s *Server) handleDeleteChunk(c echo.Context) error {
	var req DeleteChunkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.DeleteChunk(c.Request().Context(), req.UserID, req.DocID, req.ChunkID); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("Document with DocId=%d and ChunkId=%d was successfully deleted.", req.DocID, req.ChunkID),
		"User-Id": req.UserID,
	})
}

// handleDeleteUserData empties the user's collection but keeps it
// provisioned.
func (s *Server) handleDeleteUserData(c echo.Context) error {
	var req UserCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.DeleteAllData(c.Request().Context(), req.UserID); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("All data in the collection for user '%s' were successfully deleted.", req.UserID),
	})
}

// handleDeleteUserCollection removes the user's collection entirely.
func (s *Server) handleDeleteUserCollection(c echo.Context) error {
	var req UserCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}

	if err := s.processor.DeleteUser(c.Request().Context(), req.UserID); err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Message": fmt.Sprintf("User collection for user_id = '%s' was successfully deleted.", req.UserID),
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	results, err := s.processor.Query(c.Request().Context(), req.UserID, req.Query, uint64(req.Limit), 0)
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Results": results,
	})
}

func (s *Server) handleSearchOnDoc(c echo.Context) error {
	var req QueryOnDocRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	results, err := s.processor.QueryOnDocs(c.Request().Context(), req.UserID, req.Query, req.DocIDs, uint64(req.Limit), 0)
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"Results": results,
	})
}

// handleScroll lists stored records without similarity scores. The
// response key carries the user id, matching the established wire format.
func (s *Server) handleScroll(c echo.Context) error {
	var req ScrollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id field is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultScrollLimit
	}

	results, err := s.processor.Preview(c.Request().Context(), req.UserID, uint32(req.Limit))
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		fmt.Sprintf("User %s data", req.UserID): results,
	})
}

func (s *Server) handleListCollections(c echo.Context) error {
	results, err := s.processor.ListCollections(c.Request().Context())
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"User-Collections": results,
	})
}

// mapError translates application errors into HTTP status codes.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, processor.ErrValidation),
		errors.Is(err, vectorstore.ErrInvalidCollectionName),
		errors.Is(err, vectorstore.ErrBatchLengthMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, embeddings.ErrEmbeddingFailed),
		errors.Is(err, embeddings.ErrVectorCountMismatch):
		s.logger.Error("embedding backend failure", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "embedding service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
