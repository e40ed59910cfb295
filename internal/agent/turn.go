package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
)

// Turn is the set of capabilities one agent may invoke while it owns the
// thread. A handoff ends the turn.
type Turn struct {
	session    *Session
	specialist Specialist

	mu    sync.Mutex
	ended bool
}

func (t *Turn) Agent() domain.AgentID { return t.specialist.ID }

func (t *Turn) Specialist() Specialist { return t.specialist }

func (t *Turn) ThreadID() string { return t.session.binding.ThreadID }

func (t *Turn) DocumentID() uuid.UUID { return t.session.binding.DocumentID }

// Ended reports whether the turn has handed off.
func (t *Turn) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

func (t *Turn) end() {
	t.mu.Lock()
	t.ended = true
	t.mu.Unlock()
}

// ref is an identifier a request depends on and the listing it must come from.
type ref struct {
	category category
	id       uuid.UUID
}

// refs returns the identifiers req references that must have been listed.
// Asset targets are external ids and are checked by the audit.
func (t *Turn) refs(req flow.Request) []ref {
	switch r := req.(type) {
	case *flow.AddRepresentative:
		return []ref{{categoryAcquaintance, r.AcquaintanceID}}
	case *flow.RemoveRepresentative:
		return []ref{{categoryRepresentative, r.RepresentativeID}}
	case *flow.EditRepresentative:
		return []ref{{categoryRepresentative, r.RepresentativeID}}
	case *flow.AddWitness:
		return []ref{{categoryAcquaintance, r.AcquaintanceID}}
	case *flow.RemoveWitness:
		return []ref{{categoryWitness, r.WitnessID}}
	case *flow.AddCondition:
		if r.TargetID != nil && r.ConditionType == domain.ConditionTypeRepresentative {
			return []ref{{categoryRepresentative, *r.TargetID}}
		}
	case *flow.RemoveCondition:
		return []ref{{categoryCondition, r.ConditionID}}
	case *flow.EditCondition:
		refs := []ref{{categoryCondition, r.ConditionID}}
		typ := t.session.conditionType(r.ConditionID)
		if r.ConditionType != nil {
			typ = *r.ConditionType
		}
		if r.TargetID != nil && !r.ClearTarget && typ == domain.ConditionTypeRepresentative {
			refs = append(refs, ref{categoryRepresentative, *r.TargetID})
		}
		return refs
	}
	return nil
}

func (t *Turn) check(req flow.Request) error {
	if t.Ended() {
		return ErrTurnEnded
	}
	mt := req.Type()
	if !t.specialist.Allows(mt) {
		return fmt.Errorf("%s may not %s: %w", t.specialist.ID, mt, ErrOutOfScope)
	}
	for _, r := range t.refs(req) {
		if !t.session.isResolved(r.category, r.id) {
			return fmt.Errorf("%s %s: %w", r.category, r.id, ErrUnresolvedID)
		}
	}
	return nil
}

// send checks req against the turn and sends it for the thread's document.
// Whatever the request named, the document, thread and user come from the
// thread binding.
func (t *Turn) send(ctx context.Context, req flow.Request) (*flow.Response, error) {
	if err := t.check(req); err != nil {
		return nil, fmt.Errorf("agent.Turn(%s): %w", req.Type(), err)
	}

	b := t.session.binding
	head := req.Head()
	head.DocumentID = b.DocumentID
	head.ThreadID = b.ThreadID
	head.Caller = b.UserID
	switch r := req.(type) {
	case *flow.AddRepresentative:
		r.UserID = b.UserID
	case *flow.AddWitness:
		r.UserID = b.UserID
	}

	resp, err := t.session.requester.Request(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent.Turn(%s): %w", req.Type(), err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("agent.Turn(%s): %w", req.Type(), err)
	}
	return resp, nil
}

// Dispatch sends a decoded request envelope through the turn with the same
// scope and identifier checks as the typed capabilities below.
func (t *Turn) Dispatch(ctx context.Context, req flow.Request) (*flow.Response, error) {
	if _, ok := req.(*flow.UnknownRequest); ok {
		return nil, fmt.Errorf("agent.Turn.Dispatch: %w", domain.Protocolf("unknown message type %q", req.Type()))
	}
	return t.send(ctx, req)
}

// --- Listings ---

// ListAcquaintances returns the principal's acquaintances and makes their
// ids usable in later mutations.
func (t *Turn) ListAcquaintances(ctx context.Context) ([]domain.Acquaintance, error) {
	if t.Ended() {
		return nil, fmt.Errorf("agent.Turn.ListAcquaintances: %w", ErrTurnEnded)
	}
	list, err := t.session.directory.ListAcquaintances(ctx, t.session.binding.UserID)
	if err != nil {
		return nil, fmt.Errorf("agent.Turn.ListAcquaintances: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	t.session.resolve(categoryAcquaintance, ids...)
	return list, nil
}

// Fetch returns the current document. It resolves nothing: ids become
// usable only through the listing of their category.
func (t *Turn) Fetch(ctx context.Context) (*domain.Document, error) {
	resp, err := t.send(ctx, &flow.FetchDocument{})
	if err != nil {
		return nil, err
	}
	return resp.Document, nil
}

func (t *Turn) ListRepresentatives(ctx context.Context) ([]domain.Representative, error) {
	doc, err := t.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(doc.Representatives))
	for _, r := range doc.Representatives {
		ids = append(ids, r.ID)
	}
	t.session.resolve(categoryRepresentative, ids...)
	return doc.Representatives, nil
}

func (t *Turn) ListWitnesses(ctx context.Context) ([]domain.Witness, error) {
	doc, err := t.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(doc.Witnesses))
	for _, w := range doc.Witnesses {
		ids = append(ids, w.ID)
	}
	t.session.resolve(categoryWitness, ids...)
	return doc.Witnesses, nil
}

func (t *Turn) ListConditions(ctx context.Context) ([]domain.Condition, error) {
	doc, err := t.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	t.session.listedConditions(doc.Conditions)
	return doc.Conditions, nil
}

// RequestAudit validates the document and returns its findings.
func (t *Turn) RequestAudit(ctx context.Context) (*domain.AuditResult, error) {
	resp, err := t.send(ctx, &flow.ValidateDocument{})
	if err != nil {
		return nil, err
	}
	return resp.AuditResult, nil
}

// --- Representatives ---

func (t *Turn) AddRepresentative(ctx context.Context, acquaintanceID uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.AddRepresentative{AcquaintanceID: acquaintanceID})
}

func (t *Turn) RemoveRepresentative(ctx context.Context, representativeID uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.RemoveRepresentative{RepresentativeID: representativeID})
}

func (t *Turn) EditRepresentative(ctx context.Context, representativeID uuid.UUID, edit document.RepresentativeEdit) (*flow.Response, error) {
	return t.send(ctx, &flow.EditRepresentative{
		RepresentativeID: representativeID,
		Address:          edit.Address,
		Relationship:     edit.Relationship,
	})
}

// --- Witnesses ---

func (t *Turn) AddWitness(ctx context.Context, acquaintanceID uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.AddWitness{AcquaintanceID: acquaintanceID})
}

// AddFreeformWitness names a witness who is not an acquaintance. Nothing
// needs resolving.
func (t *Turn) AddFreeformWitness(ctx context.Context, fullName, nationalIDNumber string) (*flow.Response, error) {
	return t.send(ctx, &flow.AddFreeformWitness{FullName: fullName, NationalIDNumber: nationalIDNumber})
}

func (t *Turn) RemoveWitness(ctx context.Context, witnessID uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.RemoveWitness{WitnessID: witnessID})
}

// --- Conditions ---

// AddCondition adds a condition. A representative target must have been
// listed.
func (t *Turn) AddCondition(ctx context.Context, typ domain.ConditionType, text string, targetID *uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.AddCondition{ConditionType: typ, Text: text, TargetID: targetID})
}

func (t *Turn) RemoveCondition(ctx context.Context, conditionID uuid.UUID) (*flow.Response, error) {
	return t.send(ctx, &flow.RemoveCondition{ConditionID: conditionID})
}

func (t *Turn) EditCondition(ctx context.Context, conditionID uuid.UUID, edit document.ConditionEdit) (*flow.Response, error) {
	return t.send(ctx, &flow.EditCondition{
		ConditionID:   conditionID,
		ConditionType: edit.Type,
		Text:          edit.Text,
		TargetID:      edit.TargetID,
		ClearTarget:   edit.ClearTarget,
	})
}

func (t *Turn) SetScope(ctx context.Context, scope string) (*flow.Response, error) {
	return t.send(ctx, &flow.SetScope{Scope: scope})
}

// --- Handoff ---

// Handoff passes the thread to target with the user's original message.
// On success the turn ends.
func (t *Turn) Handoff(ctx context.Context, target domain.AgentID, message string) (*handoff.Transfer, error) {
	if t.Ended() {
		return nil, fmt.Errorf("agent.Turn.Handoff: %w", ErrTurnEnded)
	}
	tr, err := t.session.coord.Handoff(ctx, t.session.binding.ThreadID, t.specialist.ID, handoff.Request{
		Target:  target,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("agent.Turn.Handoff: %w", err)
	}
	t.end()
	return tr, nil
}
