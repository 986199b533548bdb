package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UpsertOne inserts a single vector record with a fresh identifier.
func (s *Store) UpsertOne(ctx context.Context, userID string, vector []float32, attrs map[string]any) error {
	ctx, span := tracer.Start(ctx, "Store.UpsertOne")
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("collection", collection))

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(uuid.New().String()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: toPayload(attrs),
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return recordErr(span, fmt.Errorf("upserting point to %s: %w", collection, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// UpsertMany inserts a batch of vector records in one call, generating a
// fresh identifier per record. Fails before any network call when the
// lengths of vectors and attrs differ.
func (s *Store) UpsertMany(ctx context.Context, userID string, vectors [][]float32, attrs []map[string]any) error {
	ctx, span := tracer.Start(ctx, "Store.UpsertMany")
	defer span.End()

	if len(vectors) != len(attrs) {
		return fmt.Errorf("%w: %d vectors, %d metadata entries", ErrBatchLengthMismatch, len(vectors), len(attrs))
	}

	collection, err := userCollection(userID)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(vectors)),
	)

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, vector := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vector...),
			Payload: toPayload(attrs[i]),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return recordErr(span, fmt.Errorf("upserting %d points to %s: %w", len(points), collection, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteByDoc deletes every record whose DocId equals the given value.
// Matching nothing is a no-op, not an error.
func (s *Store) DeleteByDoc(ctx context.Context, userID string, docID int64) error {
	return s.deleteByFilter(ctx, "Store.DeleteByDoc", userID, docFilter(docID))
}

// DeleteByTitle deletes every record whose Title equals the given value,
// exact match.
func (s *Store) DeleteByTitle(ctx context.Context, userID string, title string) error {
	return s.deleteByFilter(ctx, "Store.DeleteByTitle", userID, titleFilter(title))
}

// DeleteByChunk deletes the records where DocId AND ChunkId both match.
func (s *Store) DeleteByChunk(ctx context.Context, userID string, docID, chunkID int64) error {
	return s.deleteByFilter(ctx, "Store.DeleteByChunk", userID, chunkFilter(docID, chunkID))
}

// DeleteAllRecords removes every record in the user's collection while
// keeping the collection and its schema intact.
func (s *Store) DeleteAllRecords(ctx context.Context, userID string) error {
	return s.deleteByFilter(ctx, "Store.DeleteAllRecords", userID, matchAllFilter())
}

func (s *Store) deleteByFilter(ctx context.Context, op, userID string, filter *qdrant.Filter) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("collection", collection))

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return recordErr(span, fmt.Errorf("deleting points from %s: %w", collection, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// UpdateVector replaces the vector of the first record matching DocId AND
// ChunkId, keeping its identifier and attributes. Returns false when no
// record matched; the caller decides whether that silence matters.
func (s *Store) UpdateVector(ctx context.Context, userID string, vector []float32, docID, chunkID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateVector")
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return false, err
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int64("doc_id", docID),
		attribute.Int64("chunk_id", chunkID),
	)

	matches, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         chunkFilter(docID, chunkID),
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return false, recordErr(span, fmt.Errorf("looking up chunk in %s: %w", collection, err))
	}
	if len(matches) == 0 {
		span.SetAttributes(attribute.Bool("matched", false))
		span.SetStatus(codes.Ok, "no match")
		return false, nil
	}

	record := matches[0]
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      record.Id,
			Vectors: qdrant.NewVectors(vector...),
			Payload: record.Payload,
		}},
	})
	if err != nil {
		return false, recordErr(span, fmt.Errorf("re-upserting point in %s: %w", collection, err))
	}

	span.SetAttributes(attribute.Bool("matched", true))
	span.SetStatus(codes.Ok, "success")
	return true, nil
}

// Search performs unfiltered nearest-neighbor search over the user's
// collection, returning up to limit hits at or above scoreThreshold ordered
// by descending cosine similarity.
func (s *Store) Search(ctx context.Context, userID string, vector []float32, limit uint64, scoreThreshold float32) ([]ScoredRecord, error) {
	return s.search(ctx, "Store.Search", userID, vector, limit, scoreThreshold, nil)
}

// SearchByDocs is Search constrained to records whose DocId is any of the
// given ids. An empty id list is an empty disjunction: it matches nothing
// and returns no results without touching the store.
func (s *Store) SearchByDocs(ctx context.Context, userID string, docIDs []int64, vector []float32, limit uint64, scoreThreshold float32) ([]ScoredRecord, error) {
	if len(docIDs) == 0 {
		return []ScoredRecord{}, nil
	}
	return s.search(ctx, "Store.SearchByDocs", userID, vector, limit, scoreThreshold, anyDocFilter(docIDs))
}

func (s *Store) search(ctx context.Context, op, userID string, vector []float32, limit uint64, scoreThreshold float32, filter *qdrant.Filter) ([]ScoredRecord, error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", int(limit)),
	)

	hits, err := s.client.Query(ctx, buildQuery(collection, vector, limit, scoreThreshold, filter))
	if err != nil {
		if isNotFound(err) {
			return nil, recordErr(span, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection))
		}
		return nil, recordErr(span, fmt.Errorf("searching %s: %w", collection, err))
	}

	results := make([]ScoredRecord, len(hits))
	for i, hit := range hits {
		results[i] = ScoredRecord{
			ID:      pointIDString(hit.Id),
			Score:   hit.Score,
			Payload: fromPayload(hit.Payload),
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Scroll returns up to limit records from the user's collection in store
// order, payload only, for preview and inspection.
func (s *Store) Scroll(ctx context.Context, userID string, limit uint32) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "Store.Scroll")
	defer span.End()

	collection, err := userCollection(userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", int(limit)),
	)

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, recordErr(span, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection))
		}
		return nil, recordErr(span, fmt.Errorf("scrolling %s: %w", collection, err))
	}

	records := make([]Record, len(points))
	for i, p := range points {
		records[i] = Record{
			ID:      pointIDString(p.Id),
			Payload: fromPayload(p.Payload),
		}
	}

	span.SetAttributes(attribute.Int("record_count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return records, nil
}

// buildQuery assembles a similarity search request. The threshold is sent
// even at zero: cosine similarity ranges over [-1, 1], so a zero threshold
// still excludes anti-correlated hits.
func buildQuery(collection string, vector []float32, limit uint64, scoreThreshold float32, filter *qdrant.Filter) *qdrant.QueryPoints {
	return &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
		Filter:         filter,
		ScoreThreshold: qdrant.PtrOf(scoreThreshold),
	}
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
