package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/metrics"
)

// Handler processes one request and produces its response. A nil response
// means the request is ignored.
type Handler interface {
	Handle(ctx context.Context, req Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) *Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) *Response { return f(ctx, req) }

// Flow is the single consumer of one document's inbox. Requests are
// handled one at a time in arrival order; a failed or panicking request
// does not stop the loop.
type Flow struct {
	documentID uuid.UUID
	inbox      *inbox
	handler    Handler
	deliver    func(*Response)
	metrics    *metrics.Metrics
	done       chan struct{}
}

func newFlow(documentID uuid.UUID, limit int, handler Handler, deliver func(*Response), m *metrics.Metrics) *Flow {
	return &Flow{
		documentID: documentID,
		inbox:      newInbox(limit),
		handler:    handler,
		deliver:    deliver,
		metrics:    m,
		done:       make(chan struct{}),
	}
}

// DocumentID returns the document this flow serializes.
func (f *Flow) DocumentID() uuid.UUID { return f.documentID }

// Pending returns the number of queued requests.
func (f *Flow) Pending() int { return f.inbox.len() }

// Enqueue appends req to the inbox. It only blocks when the inbox is bounded
// and full.
func (f *Flow) Enqueue(ctx context.Context, req Request) error {
	if err := f.inbox.push(ctx, req); err != nil {
		return fmt.Errorf("flow.Enqueue(%s): %w", f.documentID, err)
	}
	f.metrics.QueueDelta(1)
	return nil
}

// Done is closed when the loop has exited.
func (f *Flow) Done() <-chan struct{} { return f.done }

func (f *Flow) run(ctx context.Context) {
	defer close(f.done)
	for {
		req, ok := f.inbox.pop()
		if !ok {
			select {
			case <-f.inbox.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		f.metrics.QueueDelta(-1)
		f.process(ctx, req)
	}
}

func (f *Flow) process(ctx context.Context, req Request) {
	start := time.Now()
	resp := f.safeHandle(ctx, req)
	if resp == nil {
		f.metrics.ObserveMessage(string(req.Type()), "ignored", time.Since(start))
		return
	}

	resp.MessageType = MessageResponse
	resp.RequestID = req.Head().RequestID
	outcome := "ok"
	if resp.Error != nil {
		outcome = string(resp.Error.Kind)
	}
	f.metrics.ObserveMessage(string(req.Type()), outcome, time.Since(start))
	f.deliver(resp)
}

func (f *Flow) safeHandle(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("document_id", f.documentID.String()).
				Str("message_type", string(req.Type())).
				Str("request_id", req.Head().RequestID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("flow: handler panicked")
			resp = newResponse(req)
			resp.Error = domain.Infrastructure("handle "+string(req.Type()), fmt.Errorf("panic: %v", r))
		}
	}()
	return f.handler.Handle(ctx, req)
}
