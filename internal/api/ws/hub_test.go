package ws_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/api/ws"
	"github.com/gosuda/attorney/internal/audit"
	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/server/middleware"
	"github.com/gosuda/attorney/internal/store/memory"
)

// --- mock ThreadLookup ---

type mockThreads struct {
	bindings map[string]*domain.ThreadBinding
}

func (m *mockThreads) Binding(_ context.Context, threadID string) (*domain.ThreadBinding, error) {
	b, ok := m.bindings[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// --- mock Subscriber ---

type mockSubscriber struct {
	ch      chan []byte
	channel chan string
}

func (m *mockSubscriber) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	m.channel <- channel
	return m.ch, func() {}, nil
}

func newServer(t *testing.T, hub *ws.Hub, userID uuid.UUID) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID)))
		})
	})
	r.Get("/ws/documents/{documentID}", hub.ServeDocument)
	r.Get("/ws/threads/{threadID}", hub.ServeThread)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func newDocumentHub(t *testing.T) *ws.Hub {
	t.Helper()

	svc := document.NewService(memory.NewDocumentStore(), memory.NewDirectory())
	m := flow.NewManager(flow.NewProcessor(svc, audit.NewEngine()))
	t.Cleanup(m.Shutdown)
	return ws.NewHub(m, &mockThreads{}, nil)
}

func readResponse(t *testing.T, conn *websocket.Conn) *flow.Response {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var resp flow.Response
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	return &resp
}

func TestServeDocument_AnswersCorrelatedRequests(t *testing.T) {
	t.Parallel()

	docID := uuid.New()
	srv := newServer(t, newDocumentHub(t), uuid.New())
	conn := dial(t, srv, "/ws/documents/"+docID.String())

	require.NoError(t, wsjson.Write(t.Context(), conn, map[string]any{
		"messageType": "set_scope",
		"requestId":   "r1",
		"scope":       "Sell the house",
	}))

	resp := readResponse(t, conn)
	assert.Equal(t, flow.MessageResponse, resp.MessageType)
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, flow.MessageSetScope, resp.InReplyTo)
	assert.Equal(t, docID, resp.DocumentID)
	assert.Nil(t, resp.Error)
	require.NotNil(t, resp.Document)
	assert.Equal(t, "Sell the house", resp.Document.Scope)
	require.NotNil(t, resp.AuditResult)
}

func TestServeDocument_IgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	docID := uuid.New()
	srv := newServer(t, newDocumentHub(t), uuid.New())
	conn := dial(t, srv, "/ws/documents/"+docID.String())

	require.NoError(t, wsjson.Write(t.Context(), conn, map[string]any{
		"messageType": "summon_dragon",
		"requestId":   "ignored",
	}))
	require.NoError(t, wsjson.Write(t.Context(), conn, map[string]any{
		"messageType": "fetch_document",
		"requestId":   "r2",
	}))

	resp := readResponse(t, conn)
	assert.Equal(t, "r2", resp.RequestID)
	assert.Nil(t, resp.Error)
}

func TestServeDocument_ProtocolFailures(t *testing.T) {
	t.Parallel()

	docID := uuid.New()
	srv := newServer(t, newDocumentHub(t), uuid.New())

	tests := []struct {
		name    string
		payload string
		wantID  string
	}{
		{name: "malformed json", payload: `{"messageType":`, wantID: ""},
		{name: "missing message type", payload: `{"requestId":"r3"}`, wantID: "r3"},
		{
			name:    "foreign document",
			payload: `{"messageType":"fetch_document","requestId":"r4","documentId":"` + uuid.NewString() + `"}`,
			wantID:  "r4",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			conn := dial(t, srv, "/ws/documents/"+docID.String())
			require.NoError(t, conn.Write(t.Context(), websocket.MessageText, []byte(tc.payload)))

			resp := readResponse(t, conn)
			assert.Equal(t, tc.wantID, resp.RequestID)
			require.NotNil(t, resp.Error)
			assert.Equal(t, domain.KindProtocol, resp.Error.Kind)
		})
	}
}

func TestServeDocument_RejectsInvalidDocumentID(t *testing.T) {
	t.Parallel()

	srv := newServer(t, newDocumentHub(t), uuid.New())

	resp, err := http.Get(srv.URL + "/ws/documents/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeThread_ForwardsEvents(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	threads := &mockThreads{bindings: map[string]*domain.ThreadBinding{
		"t-1": {ThreadID: "t-1", DocumentID: uuid.New(), UserID: userID, InitialAgent: domain.AgentRepresentative},
	}}
	sub := &mockSubscriber{ch: make(chan []byte, 1), channel: make(chan string, 1)}
	srv := newServer(t, ws.NewHub(nil, threads, sub), userID)

	conn := dial(t, srv, "/ws/threads/t-1")
	assert.Equal(t, "thread:t-1", <-sub.channel)

	sub.ch <- []byte(`{"kind":"activity"}`)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"activity"}`, string(data))
}

func TestServeThread_HidesOtherUsersThreads(t *testing.T) {
	t.Parallel()

	threads := &mockThreads{bindings: map[string]*domain.ThreadBinding{
		"t-1": {ThreadID: "t-1", DocumentID: uuid.New(), UserID: uuid.New(), InitialAgent: domain.AgentRepresentative},
	}}
	sub := &mockSubscriber{ch: make(chan []byte), channel: make(chan string, 1)}
	srv := newServer(t, ws.NewHub(nil, threads, sub), uuid.New())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/threads/t-1"
	_, resp, err := websocket.Dial(t.Context(), url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeDocument_KeepsSocketOrder(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	m := flow.NewManager(flow.HandlerFunc(func(_ context.Context, req flow.Request) *flow.Response {
		mu.Lock()
		seen = append(seen, req.Head().RequestID)
		mu.Unlock()
		return &flow.Response{InReplyTo: req.Type(), DocumentID: req.Head().DocumentID}
	}))
	t.Cleanup(m.Shutdown)

	srv := newServer(t, ws.NewHub(m, &mockThreads{}, nil), uuid.New())
	conn := dial(t, srv, "/ws/documents/"+uuid.NewString())

	const n = 300
	want := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("%04d", i)
		want = append(want, id)
		require.NoError(t, wsjson.Write(t.Context(), conn, map[string]any{
			"messageType": "set_scope",
			"requestId":   id,
			"scope":       id,
		}))
	}

	got := make(map[string]bool, n)
	for range n {
		got[readResponse(t, conn).RequestID] = true
	}
	assert.Len(t, got, n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestServeDocument_ScopesThreads(t *testing.T) {
	t.Parallel()

	userID, docID := uuid.New(), uuid.New()
	threads := &mockThreads{bindings: map[string]*domain.ThreadBinding{
		"mine":      {ThreadID: "mine", DocumentID: docID, UserID: userID, InitialAgent: domain.AgentCondition},
		"elsewhere": {ThreadID: "elsewhere", DocumentID: uuid.New(), UserID: userID, InitialAgent: domain.AgentCondition},
		"theirs":    {ThreadID: "theirs", DocumentID: docID, UserID: uuid.New(), InitialAgent: domain.AgentCondition},
	}}
	svc := document.NewService(memory.NewDocumentStore(), memory.NewDirectory())
	m := flow.NewManager(flow.NewProcessor(svc, audit.NewEngine()))
	t.Cleanup(m.Shutdown)
	srv := newServer(t, ws.NewHub(m, threads, nil), userID)

	tests := []struct {
		thread   string
		wantKind domain.ErrorKind
	}{
		{thread: "mine"},
		{thread: "elsewhere", wantKind: domain.KindProtocol},
		{thread: "theirs", wantKind: domain.KindNotFound},
		{thread: "missing", wantKind: domain.KindNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.thread, func(t *testing.T) {
			t.Parallel()

			conn := dial(t, srv, "/ws/documents/"+docID.String())
			require.NoError(t, wsjson.Write(t.Context(), conn, map[string]any{
				"messageType": "validate_document",
				"requestId":   "v-" + tc.thread,
				"threadId":    tc.thread,
			}))

			resp := readResponse(t, conn)
			assert.Equal(t, "v-"+tc.thread, resp.RequestID)
			if tc.wantKind == "" {
				assert.Nil(t, resp.Error)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantKind, resp.Error.Kind)
		})
	}
}

func TestServeDocument_HidesOtherUsersDocuments(t *testing.T) {
	t.Parallel()

	svc := document.NewService(memory.NewDocumentStore(), memory.NewDirectory())
	m := flow.NewManager(flow.NewProcessor(svc, audit.NewEngine()))
	t.Cleanup(m.Shutdown)
	hub := ws.NewHub(m, &mockThreads{}, nil)

	docID := uuid.New()
	path := "/ws/documents/" + docID.String()

	owner := dial(t, newServer(t, hub, uuid.New()), path)
	require.NoError(t, wsjson.Write(t.Context(), owner, map[string]any{
		"messageType": "set_scope", "requestId": "s1", "scope": "Sell the house",
	}))
	require.Nil(t, readResponse(t, owner).Error)

	stranger := dial(t, newServer(t, hub, uuid.New()), path)
	require.NoError(t, wsjson.Write(t.Context(), stranger, map[string]any{
		"messageType": "set_scope", "requestId": "s2", "scope": "hijacked",
	}))
	resp := readResponse(t, stranger)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindNotFound, resp.Error.Kind)

	require.NoError(t, wsjson.Write(t.Context(), owner, map[string]any{
		"messageType": "fetch_document", "requestId": "f1",
	}))
	resp = readResponse(t, owner)
	require.NotNil(t, resp.Document)
	assert.Equal(t, "Sell the house", resp.Document.Scope)
}
