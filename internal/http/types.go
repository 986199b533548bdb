// Package http provides the HTTP API for the vector db handler.
package http

// UpsertRequest is the request body for POST /upsert_data/.
type UpsertRequest struct {
	UserID   string         `json:"user_id"`
	Chunk    string         `json:"chunk"`
	Metadata map[string]any `json:"metadata"`
}

// UpsertListRequest is the request body for POST /upsert_list_data/.
type UpsertListRequest struct {
	UserID    string           `json:"user_id"`
	Chunks    []string         `json:"chunks"`
	Metadatas []map[string]any `json:"metadatas"`
}

// DeleteDocRequest is the request body for DELETE /delete_doc/.
type DeleteDocRequest struct {
	UserID string `json:"user_id"`
	DocID  int64  `json:"doc_id"`
}

// DeleteDocByTitleRequest is the request body for DELETE /delete_doc_by_title/.
type DeleteDocByTitleRequest struct {
	UserID   string `json:"user_id"`
	DocTitle string `json:"doc_title"`
}

// DeleteChunkRequest is the request body for DELETE /delete_chunk/.
type DeleteChunkRequest struct {
	UserID  string `json:"user_id"`
	DocID   int64  `json:"doc_id"`
	ChunkID int64  `json:"chunk_id"`
}

// UserCollectionRequest addresses a whole user collection. It is the request
// body for DELETE /delete_user_collection_data/ and DELETE /delete_user_collection/.
type UserCollectionRequest struct {
	UserID string `json:"user_id"`
}

// UpdateRequest is the request body for PUT /update_data/.
type UpdateRequest struct {
	UserID  string `json:"user_id"`
	Chunk   string `json:"chunk"`
	DocID   int64  `json:"doc_id"`
	ChunkID int64  `json:"chunk_id"`
}

// QueryRequest is the request body for POST /search_query/.
// A zero or absent limit falls back to the default of 5.
type QueryRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
}

// QueryOnDocRequest is the request body for POST /search_query_on_doc/.
type QueryOnDocRequest struct {
	UserID string  `json:"user_id"`
	Query  string  `json:"query"`
	DocIDs []int64 `json:"doc_ids"`
	Limit  int     `json:"limit"`
}

// ScrollRequest is the request body for POST /scroll_user_collection/.
// A zero or absent limit falls back to the default of 20.
type ScrollRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// HealthResponse is the response body for GET /.
type HealthResponse struct {
	Message string `json:"message"`
}
