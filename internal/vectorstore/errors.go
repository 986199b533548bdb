// Package vectorstore translates user-scoped operations into Qdrant
// collection operations.
package vectorstore

import "errors"

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrBatchLengthMismatch indicates vectors and attribute maps of
	// different lengths were passed to a batch upsert.
	ErrBatchLengthMismatch = errors.New("vectors and metadata lengths must match")
)
