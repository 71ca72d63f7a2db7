package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/councilflow/councilflow/api"
	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/llm"
	"github.com/councilflow/councilflow/storage"
)

// stubPipeline is a canned Deliberator.
type stubPipeline struct {
	members []council.Member
	result  *council.DeliberationResult
	err     error
	events  []council.Event

	gotHistory []llm.Message
}

func (s *stubPipeline) Deliberate(ctx context.Context, history []llm.Message, sink council.EventSink) (*council.DeliberationResult, error) {
	s.gotHistory = history
	if sink != nil {
		for _, e := range s.events {
			sink.Emit(e)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubPipeline) Members() []council.Member { return s.members }

func sampleResult() *council.DeliberationResult {
	return &council.DeliberationResult{
		Stage1: council.StageResult{
			"m1": {Member: "m1", Content: "answer one"},
			"m2": {Member: "m2", Content: "answer two"},
		},
		Stage2: []council.Evaluation{
			{Evaluator: "m1", RawText: "FINAL RANKING:\n1. Response B\n2. Response A", ParsedRanking: []council.Label{"B", "A"}},
		},
		Stage3: "the synthesized answer",
		Metadata: council.Metadata{
			LabelMap: map[council.Label]council.Member{"A": "m1", "B": "m2"},
			AggregateRankings: []council.AggregateEntry{
				{Member: "m2", AveragePosition: 1, VoteCount: 1},
				{Member: "m1", AveragePosition: 2, VoteCount: 1},
			},
		},
	}
}

func newTestServer(t *testing.T) (*http.ServeMux, storage.Store, *stubPipeline) {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pipe := &stubPipeline{
		members: []council.Member{"m1", "m2"},
		result:  sampleResult(),
	}

	h := NewConversationHandler(store, pipe, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", h.HandleList)
	mux.HandleFunc("POST /api/conversations", h.HandleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/conversations/{id}/message", h.HandleSendMessage)

	return mux, store, pipe
}

func createConversation(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data storage.Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestConversations_CreateListGetDelete(t *testing.T) {
	mux, _, _ := newTestServer(t)

	id := createConversation(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []storage.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversations_GetMissing(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/conversations/ffffffff-ffff-ffff-ffff-ffffffffffff", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_HappyPath(t *testing.T) {
	mux, store, pipe := newTestServer(t)
	id := createConversation(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/conversations/"+id+"/message",
		strings.NewReader(`{"content":"what is the answer?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data api.SendMessageResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, id, resp.Data.ConversationID)
	assert.Equal(t, "the synthesized answer", resp.Data.Stage3)
	assert.Len(t, resp.Data.Stage1, 2)
	assert.Len(t, resp.Data.Stage2, 1)
	assert.Equal(t, "m1", resp.Data.Metadata.LabelMap["A"])
	require.Len(t, resp.Data.Metadata.AggregateRankings, 2)
	assert.Equal(t, "m2", resp.Data.Metadata.AggregateRankings[0].Model)

	// The question reached the pipeline as the final user turn.
	require.NotEmpty(t, pipe.gotHistory)
	last := pipe.gotHistory[len(pipe.gotHistory)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "what is the answer?", last.Content)

	// Both turns were persisted, without the metadata.
	conv, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
	assert.Equal(t, "the synthesized answer", conv.Messages[1].Content)
	assert.Len(t, conv.Messages[1].Stage1, 2)
}

func TestSendMessage_HistoryExcludesStageOutputs(t *testing.T) {
	mux, store, pipe := newTestServer(t)
	id := createConversation(t, mux)

	require.NoError(t, store.Append(context.Background(), id,
		storage.Message{Role: "user", Content: "first question"},
		storage.Message{
			Role:    "assistant",
			Content: "first answer",
			Stage1:  []storage.MemberAnswer{{Model: "m1", Content: "raw answer"}},
		},
	))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/conversations/"+id+"/message",
		strings.NewReader(`{"content":"second question"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, pipe.gotHistory, 3)
	assert.Equal(t, "first answer", pipe.gotHistory[1].Content)
	for _, m := range pipe.gotHistory {
		assert.NotContains(t, m.Content, "raw answer")
	}
}

func TestSendMessage_EmptyContent(t *testing.T) {
	mux, _, _ := newTestServer(t)
	id := createConversation(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/conversations/"+id+"/message",
		strings.NewReader(`{"content":"   "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_PipelineFailure(t *testing.T) {
	mux, store, pipe := newTestServer(t)
	id := createConversation(t, mux)
	pipe.err = council.ErrAllMembersFailed

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/conversations/"+id+"/message",
		strings.NewReader(`{"content":"doomed"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Nothing persisted on failure.
	conv, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestSendMessage_MissingConversation(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/conversations/ffffffff-ffff-ffff-ffff-ffffffffffff/message",
		strings.NewReader(`{"content":"hello"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
