package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("vector-db-handler.vectorstore")

// Config holds configuration for the Qdrant gRPC client.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), NOT the HTTP REST port (6333).
	Port int

	// VectorSize is the dimensionality of stored vectors. Fixed at
	// collection creation; records of a different dimensionality are
	// rejected by Qdrant.
	VectorSize uint64

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
}

// Store performs all namespace-scoped interaction with Qdrant.
//
// Every user maps to one collection (see CollectionName) created lazily on
// first write with cosine distance. Store applies no retry of its own:
// errors from Qdrant surface to the caller, bounded by the caller's context
// deadline. Safe for concurrent use.
type Store struct {
	client *qdrant.Client
	config Config

	// collections caches collection existence so repeated EnsureCollection
	// calls skip the round trip. Key: collection name.
	collections sync.Map
}

// New creates a Store and verifies connectivity with a health check.
func New(ctx context.Context, config Config) (*Store, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &Store{
		client: client,
		config: config,
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	return s, nil
}

// Close closes the Qdrant gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// VectorSize returns the configured vector dimensionality.
func (s *Store) VectorSize() int {
	return int(s.config.VectorSize)
}

// EnsureCollection creates the user's collection if it does not exist.
//
// Idempotent: repeated calls for the same user are no-ops after the first.
// Concurrent first-time callers may race on creation; Qdrant rejects the
// duplicate create without corrupting state, which is treated as success.
func (s *Store) EnsureCollection(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Store.EnsureCollection")
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("collection", collection))

	if _, ok := s.collections.Load(collection); ok {
		return nil
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !isAlreadyExists(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
	}

	s.collections.Store(collection, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteCollection drops the user's collection entirely, schema included.
// Irreversible.
func (s *Store) DeleteCollection(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteCollection")
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("collection", collection))

	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}

	s.collections.Delete(collection)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// ListCollections returns every collection name in the store, across all
// users.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Store.ListCollections")
	defer span.End()

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	span.SetAttributes(attribute.Int("collection_count", len(collections)))
	span.SetStatus(codes.Ok, "success")
	return collections, nil
}

// collectionExists checks existence, mapping gRPC NotFound to false.
func (s *Store) collectionExists(ctx context.Context, collection string) (bool, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil, nil
}

// isNotFound reports whether an error is Qdrant signaling a missing
// collection.
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// isAlreadyExists reports whether an error is Qdrant rejecting a duplicate
// collection create, which a racing EnsureCollection treats as success.
func isAlreadyExists(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == grpccodes.AlreadyExists || st.Code() == grpccodes.InvalidArgument
}
