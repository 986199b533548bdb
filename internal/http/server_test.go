package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlirezaFazli29/vector-db-handler/internal/embeddings"
	"github.com/AlirezaFazli29/vector-db-handler/internal/processor"
)

type fakeProcessor struct {
	storeTextErr  error
	storeTextsErr error
	replaceOK     bool
	replaceErr    error
	queryResults  []processor.QueryResult
	queryErr      error
	summaries     []processor.RecordSummary
	previewErr    error
	deleteErr     error
	collections   []string
	listErr       error

	lastUserID string
	lastTexts  []string
	lastDocIDs []int64
	lastLimit  uint64
}

func (f *fakeProcessor) StoreText(_ context.Context, userID, text string, _ map[string]any) error {
	f.lastUserID = userID
	f.lastTexts = []string{text}
	return f.storeTextErr
}

func (f *fakeProcessor) StoreTexts(_ context.Context, userID string, texts []string, _ []map[string]any) error {
	f.lastUserID = userID
	f.lastTexts = texts
	return f.storeTextsErr
}

func (f *fakeProcessor) ReplaceChunk(_ context.Context, userID, _ string, _, _ int64) (bool, error) {
	f.lastUserID = userID
	return f.replaceOK, f.replaceErr
}

func (f *fakeProcessor) Query(_ context.Context, userID, _ string, limit uint64, _ float32) ([]processor.QueryResult, error) {
	f.lastUserID = userID
	f.lastLimit = limit
	return f.queryResults, f.queryErr
}

func (f *fakeProcessor) QueryOnDocs(_ context.Context, userID, _ string, docIDs []int64, limit uint64, _ float32) ([]processor.QueryResult, error) {
	f.lastUserID = userID
	f.lastDocIDs = docIDs
	f.lastLimit = limit
	return f.queryResults, f.queryErr
}

func (f *fakeProcessor) Preview(_ context.Context, userID string, limit uint32) ([]processor.RecordSummary, error) {
	f.lastUserID = userID
	f.lastLimit = uint64(limit)
	return f.summaries, f.previewErr
}

func (f *fakeProcessor) DeleteDoc(_ context.Context, userID string, _ int64) error {
	f.lastUserID = userID
	return f.deleteErr
}

func (f *fakeProcessor) DeleteDocByTitle(_ context.Context, userID, _ string) error {
	f.lastUserID = userID
	return f.deleteErr
}

func (f *fakeProcessor) DeleteChunk(_ context.Context, userID string, _, _ int64) error {
	f.lastUserID = userID
	return f.deleteErr
}

func (f *fakeProcessor) DeleteAllData(_ context.Context, userID string) error {
	f.lastUserID = userID
	return f.deleteErr
}

func (f *fakeProcessor) DeleteUser(_ context.Context, userID string) error {
	f.lastUserID = userID
	return f.deleteErr
}

func (f *fakeProcessor) ListCollections(_ context.Context) ([]string, error) {
	return f.collections, f.listErr
}

func newTestServer(t *testing.T, proc Processor) *Server {
	t.Helper()
	s, err := NewServer(proc, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func doJSON(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewServer(t *testing.T) {
	t.Run("requires processor", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(&fakeProcessor{}, nil, nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{})
	rec := doJSON(s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Service is up and running", body["message"])
}

func TestHandleUpsert(t *testing.T) {
	t.Run("success echoes metadata", func(t *testing.T) {
		proc := &fakeProcessor{}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/upsert_data/",
			`{"user_id":"alice","chunk":"hello","metadata":{"DocId":1,"ChunkId":0,"Title":"greeting"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "String data was successfully upserted to the vector database.", body["Message"])
		assert.Equal(t, "alice", body["User-Id"])
		meta, ok := body["Upserted-Metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), meta["DocId"])
		assert.Equal(t, "alice", proc.lastUserID)
	})

	t.Run("missing user_id", func(t *testing.T) {
		s := newTestServer(t, &fakeProcessor{})
		rec := doJSON(s, http.MethodPost, "/upsert_data/", `{"chunk":"hello"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t, &fakeProcessor{})
		rec := doJSON(s, http.MethodPost, "/upsert_data/", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("embedding outage maps to bad gateway", func(t *testing.T) {
		proc := &fakeProcessor{storeTextErr: embeddings.ErrEmbeddingFailed}
		s := newTestServer(t, proc)
		rec := doJSON(s, http.MethodPost, "/upsert_data/", `{"user_id":"alice","chunk":"hello"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleUpsertList(t *testing.T) {
	t.Run("success echoes metadatas", func(t *testing.T) {
		proc := &fakeProcessor{}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/upsert_list_data/",
			`{"user_id":"alice","chunks":["a","b"],"metadatas":[{"DocId":1},{"DocId":1}]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "List of strings data were successfully upserted to the vector database.", body["Message"])
		metas, ok := body["Upserted-Metadatas"].([]any)
		require.True(t, ok)
		assert.Len(t, metas, 2)
		assert.Equal(t, []string{"a", "b"}, proc.lastTexts)
	})

	t.Run("validation failure maps to bad request", func(t *testing.T) {
		proc := &fakeProcessor{storeTextsErr: processor.ErrValidation}
		s := newTestServer(t, proc)
		rec := doJSON(s, http.MethodPost, "/upsert_list_data/",
			`{"user_id":"alice","chunks":["a","b"],"metadatas":[{}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUpdate(t *testing.T) {
	t.Run("matched update", func(t *testing.T) {
		proc := &fakeProcessor{replaceOK: true}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPut, "/update_data/",
			`{"user_id":"alice","chunk":"new text","doc_id":3,"chunk_id":12}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "String data for DocId=3 ChunkId=12 was successfully updated.", body["Message"])
		assert.Equal(t, "alice", body["User-Id"])
	})

	t.Run("unmatched update still reports success", func(t *testing.T) {
		proc := &fakeProcessor{replaceOK: false}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPut, "/update_data/",
			`{"user_id":"alice","chunk":"new text","doc_id":3,"chunk_id":99}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleDeletes(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		body        string
		wantMessage string
		wantUserID  bool
	}{
		{
			name:        "delete doc",
			path:        "/delete_doc/",
			body:        `{"user_id":"alice","doc_id":7}`,
			wantMessage: "All documents with DocId=7 were successfully deleted.",
			wantUserID:  true,
		},
		{
			name:        "delete doc by title",
			path:        "/delete_doc_by_title/",
			body:        `{"user_id":"alice","doc_title":"report"}`,
			wantMessage: `All documents with Title = "report" were successfully deleted.`,
			wantUserID:  true,
		},
		{
			name:        "delete chunk",
			path:        "/delete_chunk/",
			body:        `{"user_id":"alice","doc_id":7,"chunk_id":2}`,
			wantMessage: "Document with DocId=7 and ChunkId=2 was successfully deleted.",
			wantUserID:  true,
		},
		{
			name:        "delete user collection data",
			path:        "/delete_user_collection_data/",
			body:        `{"user_id":"alice"}`,
			wantMessage: "All data in the collection for user 'alice' were successfully deleted.",
		},
		{
			name:        "delete user collection",
			path:        "/delete_user_collection/",
			body:        `{"user_id":"alice"}`,
			wantMessage: "User collection for user_id = 'alice' was successfully deleted.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			s := newTestServer(t, proc)

			rec := doJSON(s, http.MethodDelete, tt.path, tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantMessage, body["Message"])
			if tt.wantUserID {
				assert.Equal(t, "alice", body["User-Id"])
			} else {
				assert.NotContains(t, body, "User-Id")
			}
			assert.Equal(t, "alice", proc.lastUserID)
		})
	}
}

func TestHandleSearch(t *testing.T) {
	docID := int64(3)
	chunkID := int64(0)
	title := "report"

	t.Run("returns results", func(t *testing.T) {
		proc := &fakeProcessor{queryResults: []processor.QueryResult{
			{DocID: &docID, ChunkID: &chunkID, Title: &title, Score: 0.91},
		}}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/search_query/",
			`{"user_id":"alice","query":"revenue","limit":3}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		results, ok := body["Results"].([]any)
		require.True(t, ok)
		require.Len(t, results, 1)
		hit := results[0].(map[string]any)
		assert.Equal(t, float64(3), hit["DocId"])
		assert.Equal(t, float64(0), hit["ChunkId"])
		assert.Equal(t, "report", hit["Title"])
		assert.InDelta(t, 0.91, hit["Similarity Score"], 1e-6)
		assert.Equal(t, uint64(3), proc.lastLimit)
	})

	t.Run("limit defaults to 5", func(t *testing.T) {
		proc := &fakeProcessor{}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/search_query/",
			`{"user_id":"alice","query":"revenue"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint64(5), proc.lastLimit)
	})

	t.Run("backend failure maps to internal error", func(t *testing.T) {
		proc := &fakeProcessor{queryErr: errors.New("connection refused")}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/search_query/",
			`{"user_id":"alice","query":"revenue"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleSearchOnDoc(t *testing.T) {
	t.Run("passes document scope", func(t *testing.T) {
		proc := &fakeProcessor{queryResults: []processor.QueryResult{}}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/search_query_on_doc/",
			`{"user_id":"alice","query":"revenue","doc_ids":[1,2,3],"limit":10}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []int64{1, 2, 3}, proc.lastDocIDs)
		assert.Equal(t, uint64(10), proc.lastLimit)
	})

	t.Run("empty doc_ids returns empty results", func(t *testing.T) {
		proc := &fakeProcessor{queryResults: []processor.QueryResult{}}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/search_query_on_doc/",
			`{"user_id":"alice","query":"revenue","doc_ids":[]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		results, ok := body["Results"].([]any)
		require.True(t, ok)
		assert.Empty(t, results)
	})
}

func TestHandleScroll(t *testing.T) {
	docID := int64(2)
	title := "notes"

	t.Run("response key carries the user id", func(t *testing.T) {
		proc := &fakeProcessor{summaries: []processor.RecordSummary{
			{DocID: &docID, Title: &title},
		}}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/scroll_user_collection/",
			`{"user_id":"alice","limit":10}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		results, ok := body["User alice data"].([]any)
		require.True(t, ok)
		require.Len(t, results, 1)
		record := results[0].(map[string]any)
		assert.Equal(t, float64(2), record["DocId"])
		assert.Equal(t, "notes", record["Title"])
		assert.NotContains(t, record, "Similarity Score")
	})

	t.Run("limit defaults to 20", func(t *testing.T) {
		proc := &fakeProcessor{}
		s := newTestServer(t, proc)

		rec := doJSON(s, http.MethodPost, "/scroll_user_collection/", `{"user_id":"alice"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint64(20), proc.lastLimit)
	})
}

func TestHandleListCollections(t *testing.T) {
	proc := &fakeProcessor{collections: []string{"user_alice", "user_bob"}}
	s := newTestServer(t, proc)

	rec := doJSON(s, http.MethodGet, "/list_users_collection/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	collections, ok := body["User-Collections"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"user_alice", "user_bob"}, collections)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{})
	rec := doJSON(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
