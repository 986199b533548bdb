// Package processor orchestrates text ingestion and retrieval: it turns raw
// chunks into vectors through the embedding service and keeps them in the
// per-user vector store collections.
package processor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlirezaFazli29/vector-db-handler/internal/vectorstore"
)

// ErrValidation marks request-shaped failures the caller should report as
// bad input rather than as a backend fault.
var ErrValidation = errors.New("validation failed")

// Embedder generates vector representations of text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the slice of the store the processor drives.
type VectorStore interface {
	EnsureCollection(ctx context.Context, userID string) error
	DeleteCollection(ctx context.Context, userID string) error
	ListCollections(ctx context.Context) ([]string, error)
	UpsertOne(ctx context.Context, userID string, vector []float32, attrs map[string]any) error
	UpsertMany(ctx context.Context, userID string, vectors [][]float32, attrs []map[string]any) error
	UpdateVector(ctx context.Context, userID string, vector []float32, docID, chunkID int64) (bool, error)
	DeleteByDoc(ctx context.Context, userID string, docID int64) error
	DeleteByTitle(ctx context.Context, userID string, title string) error
	DeleteByChunk(ctx context.Context, userID string, docID, chunkID int64) error
	DeleteAllRecords(ctx context.Context, userID string) error
	Search(ctx context.Context, userID string, vector []float32, limit uint64, scoreThreshold float32) ([]vectorstore.ScoredRecord, error)
	SearchByDocs(ctx context.Context, userID string, docIDs []int64, vector []float32, limit uint64, scoreThreshold float32) ([]vectorstore.ScoredRecord, error)
	Scroll(ctx context.Context, userID string, limit uint32) ([]vectorstore.Record, error)
}

// QueryResult is one similarity search hit, reshaped for API consumers.
type QueryResult struct {
	DocID   *int64  `json:"DocId"`
	ChunkID *int64  `json:"ChunkId"`
	Title   *string `json:"Title"`
	Score   float32 `json:"Similarity Score"`
}

// RecordSummary is one stored record without a similarity score, as
// returned by collection previews.
type RecordSummary struct {
	DocID   *int64  `json:"DocId"`
	ChunkID *int64  `json:"ChunkId"`
	Title   *string `json:"Title"`
}

// Processor wires the embedding service to the vector store.
type Processor struct {
	embedder Embedder
	store    VectorStore
	logger   *zap.Logger
}

// New creates a Processor. logger may be nil.
func New(embedder Embedder, store VectorStore, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// StoreText embeds a single chunk and stores it in the user's collection,
// creating the collection on first use. An embedding failure aborts before
// anything is written.
func (p *Processor) StoreText(ctx context.Context, userID, text string, attrs map[string]any) error {
	vector, err := p.embedder.EmbedText(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding chunk: %w", err)
	}

	if err := p.store.EnsureCollection(ctx, userID); err != nil {
		return fmt.Errorf("preparing collection: %w", err)
	}

	if err := p.store.UpsertOne(ctx, userID, vector, attrs); err != nil {
		return fmt.Errorf("storing chunk: %w", err)
	}

	p.logger.Debug("stored chunk",
		zap.String("user_id", userID),
		zap.Int("text_length", len(text)))
	return nil
}

// StoreTexts embeds a batch of chunks and stores them atomically in the
// user's collection. Mismatched chunk and metadata counts fail before any
// network traffic; a batch embedding failure aborts before anything is
// written.
func (p *Processor) StoreTexts(ctx context.Context, userID string, texts []string, attrs []map[string]any) error {
	if len(texts) != len(attrs) {
		return fmt.Errorf("%w: %d chunks but %d metadata entries", ErrValidation, len(texts), len(attrs))
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}

	if err := p.store.EnsureCollection(ctx, userID); err != nil {
		return fmt.Errorf("preparing collection: %w", err)
	}

	if err := p.store.UpsertMany(ctx, userID, vectors, attrs); err != nil {
		return fmt.Errorf("storing batch: %w", err)
	}

	p.logger.Debug("stored batch",
		zap.String("user_id", userID),
		zap.Int("chunk_count", len(texts)))
	return nil
}

// ReplaceChunk re-embeds a chunk and swaps the stored vector in place,
// keeping the record's identity and attributes. Returns false when no
// record matches the (docID, chunkID) pair; the collection is never
// created as a side effect.
func (p *Processor) ReplaceChunk(ctx context.Context, userID, text string, docID, chunkID int64) (bool, error) {
	vector, err := p.embedder.EmbedText(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embedding replacement chunk: %w", err)
	}

	updated, err := p.store.UpdateVector(ctx, userID, vector, docID, chunkID)
	if err != nil {
		return false, fmt.Errorf("replacing chunk vector: %w", err)
	}
	if !updated {
		p.logger.Debug("no chunk matched for replacement",
			zap.String("user_id", userID),
			zap.Int64("doc_id", docID),
			zap.Int64("chunk_id", chunkID))
	}
	return updated, nil
}

// Query embeds the query text and returns the nearest chunks across the
// user's whole collection.
func (p *Processor) Query(ctx context.Context, userID, query string, limit uint64, scoreThreshold float32) ([]QueryResult, error) {
	vector, err := p.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := p.store.Search(ctx, userID, vector, limit, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}
	return toQueryResults(hits), nil
}

// QueryOnDocs is Query restricted to the given document ids. An empty id
// list matches nothing and returns no results.
func (p *Processor) QueryOnDocs(ctx context.Context, userID, query string, docIDs []int64, limit uint64, scoreThreshold float32) ([]QueryResult, error) {
	if len(docIDs) == 0 {
		return []QueryResult{}, nil
	}

	vector, err := p.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := p.store.SearchByDocs(ctx, userID, docIDs, vector, limit, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	return toQueryResults(hits), nil
}

// Preview returns up to limit records from the user's collection in store
// order, without similarity scores.
func (p *Processor) Preview(ctx context.Context, userID string, limit uint32) ([]RecordSummary, error) {
	records, err := p.store.Scroll(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("scrolling collection: %w", err)
	}

	summaries := make([]RecordSummary, len(records))
	for i, r := range records {
		summaries[i] = RecordSummary{
			DocID:   payloadInt(r.Payload, "DocId"),
			ChunkID: payloadInt(r.Payload, "ChunkId"),
			Title:   payloadString(r.Payload, "Title"),
		}
	}
	return summaries, nil
}

// DeleteDoc removes every chunk of one document. Matching nothing is a
// no-op.
func (p *Processor) DeleteDoc(ctx context.Context, userID string, docID int64) error {
	return p.store.DeleteByDoc(ctx, userID, docID)
}

// DeleteDocByTitle removes every chunk whose Title matches exactly.
func (p *Processor) DeleteDocByTitle(ctx context.Context, userID, title string) error {
	return p.store.DeleteByTitle(ctx, userID, title)
}

// DeleteChunk removes one chunk addressed by document and chunk id.
func (p *Processor) DeleteChunk(ctx context.Context, userID string, docID, chunkID int64) error {
	return p.store.DeleteByChunk(ctx, userID, docID, chunkID)
}

// DeleteAllData empties the user's collection but keeps it provisioned.
func (p *Processor) DeleteAllData(ctx context.Context, userID string) error {
	return p.store.DeleteAllRecords(ctx, userID)
}

// DeleteUser removes the user's collection entirely.
func (p *Processor) DeleteUser(ctx context.Context, userID string) error {
	return p.store.DeleteCollection(ctx, userID)
}

// ListCollections reports every collection name currently provisioned.
func (p *Processor) ListCollections(ctx context.Context) ([]string, error) {
	return p.store.ListCollections(ctx)
}

func toQueryResults(hits []vectorstore.ScoredRecord) []QueryResult {
	results := make([]QueryResult, len(hits))
	for i, hit := range hits {
		results[i] = QueryResult{
			DocID:   payloadInt(hit.Payload, "DocId"),
			ChunkID: payloadInt(hit.Payload, "ChunkId"),
			Title:   payloadString(hit.Payload, "Title"),
			Score:   hit.Score,
		}
	}
	return results
}

// payloadInt extracts an integer attribute, tolerating absent keys and
// numeric values that round-tripped through JSON as floats.
func payloadInt(payload map[string]any, key string) *int64 {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		val := int64(n)
		return &val
	case float64:
		val := int64(n)
		return &val
	default:
		return nil
	}
}

func payloadString(payload map[string]any, key string) *string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
