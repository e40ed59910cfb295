package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/metrics"
)

// ErrShutdown is returned for requests submitted after Shutdown.
var ErrShutdown = errors.New("flow: manager shut down")

// Manager owns one Flow per document, created on first use, and correlates
// responses to the callers that are waiting for them.
type Manager struct {
	handler        Handler
	correlator     *Correlator
	metrics        *metrics.Metrics
	inboxLimit     int
	requestTimeout time.Duration

	mu     sync.Mutex
	flows  map[uuid.UUID]*Flow
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithInboxLimit bounds every flow's inbox; senders block when it is full.
// Zero keeps inboxes unbounded.
func WithInboxLimit(n int) Option {
	return func(m *Manager) { m.inboxLimit = n }
}

// WithRequestTimeout bounds how long Request waits for a response.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) { m.requestTimeout = d }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(handler Handler, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		handler: handler,
		flows:   make(map[uuid.UUID]*Flow),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.correlator = NewCorrelator(m.metrics)
	return m
}

// Correlator exposes the response router, e.g. for transports that deliver
// responses produced elsewhere.
func (m *Manager) Correlator() *Correlator { return m.correlator }

// Flows returns the number of live flows.
func (m *Manager) Flows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

func (m *Manager) flow(documentID uuid.UUID) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	if f, ok := m.flows[documentID]; ok {
		return f, nil
	}

	f := newFlow(documentID, m.inboxLimit, m.handler, m.dispatch, m.metrics)
	m.flows[documentID] = f
	m.metrics.FlowStarted()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.metrics.FlowStopped()
		f.run(m.ctx)
	}()
	log.Debug().Str("document_id", documentID.String()).Msg("flow: started")
	return f, nil
}

func (m *Manager) dispatch(resp *Response) {
	m.correlator.Deliver(resp)
}

func prepare(req Request) error {
	if _, ok := req.(*UnknownRequest); ok {
		return domain.Protocolf("unknown message type %q", req.Type())
	}
	head := req.Head()
	head.MessageType = req.Type()
	if head.DocumentID == uuid.Nil {
		return domain.Protocolf("%s: missing documentId", head.MessageType)
	}
	return nil
}

// Submit enqueues req without waiting. Its response, if any, is discarded
// unless a caller registered its requestId with the Correlator.
func (m *Manager) Submit(ctx context.Context, req Request) error {
	if err := prepare(req); err != nil {
		return fmt.Errorf("flow.Manager.Submit: %w", err)
	}
	f, err := m.flow(req.Head().DocumentID)
	if err != nil {
		return fmt.Errorf("flow.Manager.Submit: %w", err)
	}
	return f.Enqueue(ctx, req)
}

// Wait collects the response of a request started with Begin.
type Wait func(ctx context.Context) (*Response, error)

// Begin registers req for correlation and enqueues it on its document's
// flow. Once Begin returns the request holds its place in arrival order, so
// a transport that calls Begin for each message in turn keeps them in order
// while waiting on the responses concurrently. A missing requestId is
// generated.
func (m *Manager) Begin(ctx context.Context, req Request) (Wait, error) {
	if err := prepare(req); err != nil {
		return nil, fmt.Errorf("flow.Manager.Begin: %w", err)
	}
	head := req.Head()
	if head.RequestID == "" {
		head.RequestID = uuid.NewString()
	}

	ch, err := m.correlator.Register(head.RequestID)
	if err != nil {
		return nil, fmt.Errorf("flow.Manager.Begin: %w", err)
	}
	f, err := m.flow(head.DocumentID)
	if err != nil {
		m.correlator.Cancel(head.RequestID)
		return nil, fmt.Errorf("flow.Manager.Begin: %w", err)
	}
	if err := f.Enqueue(ctx, req); err != nil {
		m.correlator.Cancel(head.RequestID)
		return nil, fmt.Errorf("flow.Manager.Begin: %w", err)
	}

	requestID, mt := head.RequestID, head.MessageType
	return func(ctx context.Context) (*Response, error) {
		return m.wait(ctx, ch, requestID, mt)
	}, nil
}

// Request enqueues req and waits for the correlated response. Cancelling ctx
// stops the wait but not the request: it is still processed and its
// response discarded.
func (m *Manager) Request(ctx context.Context, req Request) (*Response, error) {
	wait, err := m.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return wait(ctx)
}

func (m *Manager) wait(ctx context.Context, ch <-chan *Response, requestID string, mt MessageType) (*Response, error) {
	var timeout <-chan time.Time
	if m.requestTimeout > 0 {
		timer := time.NewTimer(m.requestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		m.correlator.Cancel(requestID)
		return nil, fmt.Errorf("flow.Manager.Request(%s): %w", requestID, ctx.Err())
	case <-timeout:
		m.correlator.Cancel(requestID)
		return nil, domain.Timeoutf("%s request %s: no response within %s", mt, requestID, m.requestTimeout)
	case <-m.ctx.Done():
		m.correlator.Cancel(requestID)
		return nil, fmt.Errorf("flow.Manager.Request(%s): %w", requestID, ErrShutdown)
	}
}

// Shutdown stops every flow and waits for the loops to exit. Queued
// requests that have not started are abandoned.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
