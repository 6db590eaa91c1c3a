package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-council/internal/auction"
	"github.com/ahrav/go-council/internal/catalog"
	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/internal/workflow"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

type stubStarter struct {
	mu       sync.Mutex
	requests []workflow.ExchangeRequest
	startErr error
}

func (s *stubStarter) StartExchange(_ context.Context, req workflow.ExchangeRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return "", s.startErr
	}
	s.requests = append(s.requests, req)
	return "exchange:" + req.ConversationID, nil
}

type stubInvoker struct {
	reply string
}

func (s *stubInvoker) Invoke(_ context.Context, req *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: s.reply, Model: req.Model}, nil
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *stubStarter) {
	t.Helper()

	st := store.NewMemoryStore()
	starter := &stubStarter{}
	broker := events.NewBroker()
	t.Cleanup(broker.Close)

	invoker := &stubInvoker{reply: "500"}
	base := activity.NewBaseActivities(events.NewNoOpEventSink())
	auctionActivities := auction.NewActivities(base, invoker, catalog.NewDefaultRegistry(), 0)

	srv := NewServer(st, starter, broker, invoker, auctionActivities, Config{
		CouncilSize:   3,
		ChairmanModel: "google/gemini-3-pro-preview",
		TitleModel:    "google/gemini-2.5-flash",
		PenaltyRate:   0.2,
	}, nil)
	return srv, st, starter
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestConversationEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv domain.Conversation
	decode(t, resp, &conv)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, domain.StatusIdle, conv.Status)

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decode(t, resp, &list)
	assert.Len(t, list, 1)

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessageStartsWorkflow(t *testing.T) {
	srv, _, starter := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations", nil)
	var conv domain.Conversation
	decode(t, resp, &conv)

	resp = doJSON(t, srv, http.MethodPost, "/api/conversations/"+conv.ID+"/message",
		sendMessageRequest{Content: "why is the sky blue?"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, conv.ID, body["conversation_id"])
	assert.NotEmpty(t, body["workflow_id"])

	starter.mu.Lock()
	defer starter.mu.Unlock()
	require.Len(t, starter.requests, 1)
	assert.Equal(t, "why is the sky blue?", starter.requests[0].Query)
	assert.Equal(t, 3, starter.requests[0].CouncilSize)
	assert.Equal(t, "google/gemini-3-pro-preview", starter.requests[0].ChairmanModel)
}

func TestSendMessageValidation(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations/missing/message",
		sendMessageRequest{Content: "q"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	created := doJSON(t, srv, http.MethodPost, "/api/conversations", nil)
	var conv domain.Conversation
	decode(t, created, &conv)

	resp = doJSON(t, srv, http.MethodPost, "/api/conversations/"+conv.ID+"/message",
		sendMessageRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, st.CompareAndSetStatus(context.Background(), conv.ID,
		domain.StatusIdle, domain.StatusProcessing))
	resp = doJSON(t, srv, http.MethodPost, "/api/conversations/"+conv.ID+"/message",
		sendMessageRequest{Content: "q"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode,
		"a processing conversation rejects new messages")
}

func TestSendMessageBusyWorkflowConflicts(t *testing.T) {
	srv, _, starter := newTestServer(t)

	created := doJSON(t, srv, http.MethodPost, "/api/conversations", nil)
	var conv domain.Conversation
	decode(t, created, &conv)

	// Two racing submissions can both pass the status fast path; the
	// workflow ID collision is the authoritative gate and maps to 409.
	starter.startErr = domain.ErrConversationBusy
	resp := doJSON(t, srv, http.MethodPost, "/api/conversations/"+conv.ID+"/message",
		sendMessageRequest{Content: "q"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPreviewQuotes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/quotes/preview",
		previewRequest{Content: "why is the sky blue?", CouncilSize: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Quotes        []domain.Quote `json:"quotes"`
		Bidders       []string       `json:"bidders"`
		ValueBasisUSD float64        `json:"value_basis_usd"`
	}
	decode(t, resp, &body)
	assert.Len(t, body.Bidders, 2)
	assert.NotEmpty(t, body.Quotes)
	assert.Greater(t, body.ValueBasisUSD, 0.0)

	resp = doJSON(t, srv, http.MethodPost, "/api/quotes/preview", previewRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"Sky Color Question"`, "Sky Color Question"},
		{"  Plain Title \n", "Plain Title"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTitle(tt.input))
	}
}
