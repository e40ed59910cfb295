// Package ws serves the WebSocket endpoints: a per-document envelope socket
// that answers correlated requests, and a per-thread event stream.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/attorney/internal/api/v1"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/server/middleware"
	redisstore "github.com/gosuda/attorney/internal/store/redis"
)

// Subscriber streams the payloads published on a channel.
// *redis.PubSub satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Requester enqueues a request and hands back a wait for its response.
// *flow.Manager satisfies this interface.
type Requester interface {
	Begin(ctx context.Context, req flow.Request) (flow.Wait, error)
}

// Hub manages WebSocket connections.
type Hub struct {
	requester Requester
	threads   v1.ThreadLookup
	events    Subscriber // nil disables thread streams
}

// NewHub creates a new WebSocket hub.
func NewHub(requester Requester, threads v1.ThreadLookup, events Subscriber) *Hub {
	return &Hub{requester: requester, threads: threads, events: events}
}

// ServeDocument accepts request envelopes for one document and writes each
// correlated response as soon as it is ready. Messages are enqueued in the
// order they arrive on the socket; responses are written in completion
// order and clients match them by requestId.
func (h *Hub) ServeDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	var wg sync.WaitGroup
	defer wg.Wait()
	// Pending waits stop with the read loop; their requests still run.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("document_id", documentID.String()).Msg("websocket read")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		req, err := h.decode(ctx, data, documentID, userID)
		if err != nil {
			h.write(ctx, conn, rejection(data, documentID, err))
			continue
		}
		if req == nil {
			continue
		}

		wait, err := h.requester.Begin(ctx, req)
		if err != nil {
			h.write(ctx, conn, failure(req, documentID, err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := wait(ctx)
			if err != nil {
				resp = failure(req, documentID, err)
			}
			h.write(ctx, conn, resp)
		}()
	}
}

func failure(req flow.Request, documentID uuid.UUID, err error) *flow.Response {
	return &flow.Response{
		MessageType: flow.MessageResponse,
		RequestID:   req.Head().RequestID,
		InReplyTo:   req.Type(),
		DocumentID:  documentID,
		Error:       domain.AsOperationError(err),
	}
}

// decode returns nil for unknown message types, which are logged and ignored.
func (h *Hub) decode(ctx context.Context, data []byte, documentID, userID uuid.UUID) (flow.Request, error) {
	req, err := flow.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	if u, ok := req.(*flow.UnknownRequest); ok {
		log.Warn().
			Str("message_type", string(u.MessageType)).
			Str("request_id", u.RequestID).
			Msg("ws: ignoring unknown message type")
		return nil, nil
	}

	if err := v1.Scope(ctx, h.threads, req, documentID, userID); err != nil {
		return nil, err
	}
	if head := req.Head(); head.RequestID == "" {
		head.RequestID = uuid.NewString()
	}
	return req, nil
}

// rejection answers an envelope that never reached a flow, echoing whatever
// header could be read from it.
func rejection(data []byte, documentID uuid.UUID, err error) *flow.Response {
	var head flow.Header
	_ = json.Unmarshal(data, &head)
	return &flow.Response{
		MessageType: flow.MessageResponse,
		RequestID:   head.RequestID,
		InReplyTo:   head.MessageType,
		DocumentID:  documentID,
		Error:       domain.AsOperationError(err),
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, resp *flow.Response) {
	if err := wsjson.Write(ctx, conn, resp); err != nil {
		log.Debug().Err(err).Str("request_id", resp.RequestID).Msg("websocket write")
	}
}

// ServeThread streams a thread's activity and handoff events.
// Subscribes to Redis channel "thread:<threadID>".
func (h *Hub) ServeThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	if h.events == nil {
		http.Error(w, "thread streams are not configured", http.StatusNotImplemented)
		return
	}

	threadID := chi.URLParam(r, "threadID")
	b, err := h.threads.Binding(r.Context(), threadID)
	if err != nil || b.UserID != userID {
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients never send on this stream; CloseRead notices when they hang up.
	ctx := conn.CloseRead(r.Context())
	messages, cleanup, err := h.events.Subscribe(ctx, redisstore.ThreadChannel(threadID))
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
