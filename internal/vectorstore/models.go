package vectorstore

// Record is a stored vector record's payload view, as returned by scroll.
type Record struct {
	// ID is the opaque point identifier.
	ID string

	// Payload contains the record's attributes. At least DocId, ChunkId
	// and Title are expected, but the store does not enforce the schema,
	// so any field may be absent.
	Payload map[string]any
}

// ScoredRecord is a search hit with its cosine similarity score.
type ScoredRecord struct {
	ID      string
	Score   float32
	Payload map[string]any
}
