package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/audit"
	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/metrics"
)

// DefaultValidationTimeout bounds a single ValidateDocument call.
const DefaultValidationTimeout = 2 * time.Minute

// ActivityEmitter records what happened on a conversation thread.
type ActivityEmitter interface {
	Emit(ctx context.Context, rec *domain.ActivityRecord) error
}

// Processor is the Handler that applies requests to documents. Every
// successful mutation is followed by a validation whose result is attached
// to the response and to the thread's activity record.
type Processor struct {
	docs              *document.Service
	engine            *audit.Engine
	activity          ActivityEmitter
	metrics           *metrics.Metrics
	validationTimeout time.Duration
	now               func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithValidationTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.validationTimeout = d
		}
	}
}

// WithActivity sets where activity records go. Without one, none are emitted.
func WithActivity(e ActivityEmitter) ProcessorOption {
	return func(p *Processor) { p.activity = e }
}

func WithProcessorMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func NewProcessor(docs *document.Service, engine *audit.Engine, opts ...ProcessorOption) *Processor {
	p := &Processor{
		docs:              docs,
		engine:            engine,
		validationTimeout: DefaultValidationTimeout,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements Handler.
func (p *Processor) Handle(ctx context.Context, req Request) *Response {
	if u, ok := req.(*UnknownRequest); ok {
		log.Warn().
			Str("message_type", string(u.MessageType)).
			Str("request_id", u.RequestID).
			Msg("flow: ignoring unknown message type")
		return nil
	}

	resp := newResponse(req)
	id := req.Head().DocumentID

	if err := p.authorize(ctx, req); err != nil {
		return finish(resp, nil, err)
	}

	switch req.(type) {
	case *FetchDocument:
		doc, err := p.docs.Fetch(ctx, id)
		return finish(resp, doc, err)

	case *ValidateDocument:
		result, err := p.Validate(ctx, id)
		if err != nil {
			return finish(resp, nil, err)
		}
		resp.Document = result.Document
		resp.AuditResult = result
		p.emit(ctx, req.Head(), "Document validated", result)
		return resp
	}

	doc, err := p.mutate(ctx, req)
	if err != nil {
		return finish(resp, nil, err)
	}
	resp.Document = doc

	result, err := p.Validate(ctx, id)
	if err != nil {
		log.Warn().Err(err).
			Str("document_id", id.String()).
			Str("message_type", string(req.Type())).
			Msg("flow: follow-up validation failed")
	}
	resp.AuditResult = result
	p.emit(ctx, req.Head(), describe(req, doc), result)
	return resp
}

// authorize keeps each document to the user who first touched it. A fetch
// reports store failures as NotFound, the same as Fetch does.
func (p *Processor) authorize(ctx context.Context, req Request) error {
	head := req.Head()
	err := p.docs.Authorize(ctx, head.DocumentID, head.Caller)
	if err != nil && req.Type() == MessageFetchDocument && errors.Is(err, domain.ErrInfrastructure) {
		opErr := domain.NotFoundf("document %s could not be loaded: %v", head.DocumentID, err)
		opErr.Timeout = errors.Is(err, domain.ErrTimeout)
		return opErr
	}
	return err
}

func (p *Processor) mutate(ctx context.Context, req Request) (*domain.Document, error) {
	id := req.Head().DocumentID
	switch r := req.(type) {
	case *AddRepresentative:
		return p.docs.AddRepresentative(ctx, id, r.UserID, r.AcquaintanceID)
	case *RemoveRepresentative:
		return p.docs.RemoveRepresentative(ctx, id, r.RepresentativeID)
	case *EditRepresentative:
		return p.docs.EditRepresentative(ctx, id, r.RepresentativeID, document.RepresentativeEdit{
			Address:      r.Address,
			Relationship: r.Relationship,
		})
	case *AddCondition:
		return p.docs.AddCondition(ctx, id, r.ConditionType, r.Text, r.TargetID)
	case *RemoveCondition:
		return p.docs.RemoveCondition(ctx, id, r.ConditionID)
	case *EditCondition:
		return p.docs.EditCondition(ctx, id, r.ConditionID, document.ConditionEdit{
			Type:        r.ConditionType,
			Text:        r.Text,
			TargetID:    r.TargetID,
			ClearTarget: r.ClearTarget,
		})
	case *SetScope:
		return p.docs.SetScope(ctx, id, r.Scope)
	case *AddWitness:
		return p.docs.AddWitness(ctx, id, r.UserID, r.AcquaintanceID)
	case *AddFreeformWitness:
		return p.docs.AddFreeformWitness(ctx, id, r.FullName, r.NationalIDNumber)
	case *RemoveWitness:
		return p.docs.RemoveWitness(ctx, id, r.WitnessID)
	}
	return nil, domain.Protocolf("unsupported message type %q", req.Type())
}

// Validate loads the document and audits it. The audit is abandoned once the
// validation timeout elapses; the flow then moves on to its next request.
func (p *Processor) Validate(ctx context.Context, documentID uuid.UUID) (*domain.AuditResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.validationTimeout)
	defer cancel()

	type outcome struct {
		result *domain.AuditResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		doc, err := p.docs.Load(ctx, documentID)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{result: p.engine.Audit(doc)}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		for _, f := range o.result.Findings {
			p.metrics.CountFinding(string(f.Type))
		}
		return o.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.Timeoutf("validation of document %s exceeded %s", documentID, p.validationTimeout)
		}
		return nil, domain.Infrastructure("validate document", ctx.Err())
	}
}

func (p *Processor) emit(ctx context.Context, head *Header, summary string, result *domain.AuditResult) {
	if p.activity == nil || head.ThreadID == "" {
		return
	}

	rec := &domain.ActivityRecord{
		ID:          uuid.New(),
		ThreadID:    head.ThreadID,
		DocumentID:  head.DocumentID,
		Summary:     summary,
		Details:     auditDetails(result),
		AuditResult: result,
		Timestamp:   p.now().UTC(),
	}
	if err := p.activity.Emit(ctx, rec); err != nil {
		log.Error().Err(err).
			Str("thread_id", head.ThreadID).
			Str("document_id", head.DocumentID.String()).
			Msg("flow: failed to emit activity record")
	}
}

func finish(resp *Response, doc *domain.Document, err error) *Response {
	if err != nil {
		resp.Error = domain.AsOperationError(err)
		return resp
	}
	resp.Document = doc
	return resp
}

func auditDetails(result *domain.AuditResult) string {
	if result == nil {
		return "audit unavailable"
	}
	return fmt.Sprintf("%d error(s), %d warning(s), %d recommendation(s)",
		result.Count(domain.FindingError),
		result.Count(domain.FindingWarning),
		result.Count(domain.FindingRecommendation))
}

func describe(req Request, doc *domain.Document) string {
	switch r := req.(type) {
	case *AddRepresentative:
		if n := len(doc.Representatives); n > 0 {
			return "Added representative " + doc.Representatives[n-1].FullName
		}
	case *RemoveRepresentative:
		return "Removed representative " + r.RepresentativeID.String()
	case *EditRepresentative:
		return "Updated representative " + r.RepresentativeID.String()
	case *AddCondition:
		return "Added " + string(r.ConditionType) + " condition"
	case *RemoveCondition:
		return "Removed condition " + r.ConditionID.String()
	case *EditCondition:
		return "Updated condition " + r.ConditionID.String()
	case *SetScope:
		return "Updated document scope"
	case *AddWitness, *AddFreeformWitness:
		if n := len(doc.Witnesses); n > 0 {
			return "Added witness " + doc.Witnesses[n-1].FullName
		}
	case *RemoveWitness:
		return "Removed witness " + r.WitnessID.String()
	}
	return string(req.Type())
}
