// Package document implements the category-specific operations the
// specialist agents use to change the shared document. Every operation
// works on a copy, checks its precondition, and writes the store at most once.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// Service applies category mutations to documents held in a DocumentStore.
// It is not safe to run two mutations of the same document concurrently;
// the correlation layer serializes them.
type Service struct {
	store     domain.DocumentStore
	directory domain.AcquaintanceDirectory
}

func NewService(store domain.DocumentStore, directory domain.AcquaintanceDirectory) *Service {
	return &Service{store: store, directory: directory}
}

// Fetch returns the current document. A store failure is reported as
// NotFound: the document could not be produced.
func (s *Service) Fetch(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		opErr := domain.NotFoundf("document %s could not be loaded: %v", id, err)
		opErr.Timeout = errors.Is(err, context.DeadlineExceeded)
		return nil, opErr
	}
	return doc, nil
}

// Load returns a private copy of the current document. Unlike Fetch, a
// store failure is reported as an infrastructure failure.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, infraErr("load document", err)
	}
	return doc.Clone(), nil
}

// Authorize ties the document to the first user who touches it and hides it
// from everyone else. uuid.Nil is an in-process caller and is not checked.
func (s *Service) Authorize(ctx context.Context, documentID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return err
	}

	switch doc.Principal.UserID {
	case userID:
		return nil
	case uuid.Nil:
		doc.Principal.UserID = userID
		_, err := s.save(ctx, doc)
		return err
	}
	return domain.NotFoundf("document %s not found", documentID)
}

func (s *Service) save(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := s.store.Put(ctx, doc.ID, doc); err != nil {
		return nil, infraErr("store document", err)
	}
	return doc, nil
}

func infraErr(op string, err error) *domain.OperationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Infrastructure(op, fmt.Errorf("%w: %w", domain.ErrTimeout, err))
	}
	return domain.Infrastructure(op, err)
}

func (s *Service) acquaintance(ctx context.Context, userID, acquaintanceID uuid.UUID) (*domain.Acquaintance, error) {
	a, err := s.directory.GetAcquaintance(ctx, userID, acquaintanceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundf("acquaintance %s not found", acquaintanceID)
	}
	if err != nil {
		return nil, infraErr("get acquaintance", err)
	}
	return a, nil
}

func normalizeNationalID(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// --- Representatives ---

// AddRepresentative resolves an acquaintance into a new representative.
func (s *Service) AddRepresentative(ctx context.Context, documentID, userID, acquaintanceID uuid.UUID) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	a, err := s.acquaintance(ctx, userID, acquaintanceID)
	if err != nil {
		return nil, err
	}

	if len(doc.Representatives) >= domain.MaxRepresentatives {
		return nil, domain.Preconditionf("maximum representatives exceeded: the document already has %d", len(doc.Representatives))
	}
	key := normalizeNationalID(a.NationalIDNumber)
	for _, r := range doc.Representatives {
		if key != "" && normalizeNationalID(r.NationalID) == key {
			return nil, domain.Preconditionf("duplicate national id: %s is already a representative", r.FullName)
		}
	}

	doc.Representatives = append(doc.Representatives, domain.Representative{
		ID:           uuid.New(),
		FullName:     a.FullName,
		NationalID:   a.NationalIDNumber,
		Address:      a.Address,
		Relationship: a.Relationship,
	})
	return s.save(ctx, doc)
}

func (s *Service) RemoveRepresentative(ctx context.Context, documentID, representativeID uuid.UUID) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	i := doc.RepresentativeIndex(representativeID)
	if i < 0 {
		return nil, domain.NotFoundf("representative %s not found", representativeID)
	}

	doc.Representatives = append(doc.Representatives[:i], doc.Representatives[i+1:]...)
	return s.save(ctx, doc)
}

// RepresentativeEdit holds the editable fields; nil leaves a field unchanged.
type RepresentativeEdit struct {
	Address      *string
	Relationship *string
}

func (s *Service) EditRepresentative(ctx context.Context, documentID, representativeID uuid.UUID, edit RepresentativeEdit) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	i := doc.RepresentativeIndex(representativeID)
	if i < 0 {
		return nil, domain.NotFoundf("representative %s not found", representativeID)
	}
	if edit.Address == nil && edit.Relationship == nil {
		return nil, domain.Preconditionf("nothing to edit")
	}

	if edit.Address != nil {
		doc.Representatives[i].Address = strings.TrimSpace(*edit.Address)
	}
	if edit.Relationship != nil {
		doc.Representatives[i].Relationship = strings.TrimSpace(*edit.Relationship)
	}
	return s.save(ctx, doc)
}

// --- Witnesses ---

// AddWitness resolves an acquaintance into a new witness.
func (s *Service) AddWitness(ctx context.Context, documentID, userID, acquaintanceID uuid.UUID) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	a, err := s.acquaintance(ctx, userID, acquaintanceID)
	if err != nil {
		return nil, err
	}

	return s.appendWitness(ctx, doc, a.FullName, a.NationalIDNumber)
}

// AddFreeformWitness adds a witness the user described by name and national id.
func (s *Service) AddFreeformWitness(ctx context.Context, documentID uuid.UUID, fullName, nationalID string) (*domain.Document, error) {
	fullName = strings.TrimSpace(fullName)
	nationalID = strings.TrimSpace(nationalID)
	if fullName == "" || nationalID == "" {
		return nil, domain.Preconditionf("witness full name and national id are required")
	}

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return s.appendWitness(ctx, doc, fullName, nationalID)
}

func (s *Service) appendWitness(ctx context.Context, doc *domain.Document, fullName, nationalID string) (*domain.Document, error) {
	if len(doc.Witnesses) >= domain.MaxWitnesses {
		return nil, domain.Preconditionf("maximum witnesses exceeded: the document already has %d", len(doc.Witnesses))
	}
	idKey := normalizeNationalID(nationalID)
	for _, w := range doc.Witnesses {
		if idKey != "" && normalizeNationalID(w.NationalIDNumber) == idKey {
			return nil, domain.Preconditionf("duplicate national id: %s is already a witness", w.FullName)
		}
		if strings.EqualFold(strings.TrimSpace(w.FullName), fullName) {
			return nil, domain.Preconditionf("duplicate witness name: %s is already a witness", w.FullName)
		}
	}

	doc.Witnesses = append(doc.Witnesses, domain.Witness{
		ID:               uuid.New(),
		FullName:         fullName,
		NationalIDNumber: nationalID,
	})
	return s.save(ctx, doc)
}

func (s *Service) RemoveWitness(ctx context.Context, documentID, witnessID uuid.UUID) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	i := doc.WitnessIndex(witnessID)
	if i < 0 {
		return nil, domain.NotFoundf("witness %s not found", witnessID)
	}

	doc.Witnesses = append(doc.Witnesses[:i], doc.Witnesses[i+1:]...)
	return s.save(ctx, doc)
}

// --- Conditions and scope ---

func (s *Service) AddCondition(ctx context.Context, documentID uuid.UUID, typ domain.ConditionType, text string, targetID *uuid.UUID) (*domain.Document, error) {
	text = strings.TrimSpace(text)
	if !typ.Valid() {
		return nil, domain.Preconditionf("unknown condition type %q", typ)
	}
	if text == "" {
		return nil, domain.Preconditionf("condition text is required")
	}

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(doc, typ, targetID); err != nil {
		return nil, err
	}

	cond := domain.Condition{ID: uuid.New(), Type: typ, Text: text}
	if targetID != nil {
		target := *targetID
		cond.TargetID = &target
	}
	doc.Conditions = append(doc.Conditions, cond)
	return s.save(ctx, doc)
}

// checkTarget requires a representative condition to point at a current
// representative. Asset targets are external and are not checked here.
func checkTarget(doc *domain.Document, typ domain.ConditionType, targetID *uuid.UUID) error {
	if targetID == nil || typ != domain.ConditionTypeRepresentative {
		return nil
	}
	if doc.RepresentativeIndex(*targetID) < 0 {
		return domain.NotFoundf("representative %s not found", *targetID)
	}
	return nil
}

func (s *Service) RemoveCondition(ctx context.Context, documentID, conditionID uuid.UUID) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	i := doc.ConditionIndex(conditionID)
	if i < 0 {
		return nil, domain.NotFoundf("condition %s not found", conditionID)
	}

	doc.Conditions = append(doc.Conditions[:i], doc.Conditions[i+1:]...)
	return s.save(ctx, doc)
}

// ConditionEdit holds the editable fields; nil leaves a field unchanged.
type ConditionEdit struct {
	Type        *domain.ConditionType
	Text        *string
	TargetID    *uuid.UUID
	ClearTarget bool
}

func (s *Service) EditCondition(ctx context.Context, documentID, conditionID uuid.UUID, edit ConditionEdit) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	i := doc.ConditionIndex(conditionID)
	if i < 0 {
		return nil, domain.NotFoundf("condition %s not found", conditionID)
	}

	if edit.Type == nil && edit.Text == nil && edit.TargetID == nil && !edit.ClearTarget {
		return nil, domain.Preconditionf("nothing to edit")
	}

	cond := doc.Conditions[i]
	if edit.Type != nil {
		if !edit.Type.Valid() {
			return nil, domain.Preconditionf("unknown condition type %q", *edit.Type)
		}
		cond.Type = *edit.Type
	}
	if edit.Text != nil {
		text := strings.TrimSpace(*edit.Text)
		if text == "" {
			return nil, domain.Preconditionf("condition text is required")
		}
		cond.Text = text
	}
	switch {
	case edit.ClearTarget:
		cond.TargetID = nil
	case edit.TargetID != nil:
		target := *edit.TargetID
		cond.TargetID = &target
	}
	if err := checkTarget(doc, cond.Type, cond.TargetID); err != nil {
		return nil, err
	}

	doc.Conditions[i] = cond
	return s.save(ctx, doc)
}

// SetScope replaces the free-text scope. An empty scope is allowed and is
// reported by the audit.
func (s *Service) SetScope(ctx context.Context, documentID uuid.UUID, scope string) (*domain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc.Scope = strings.TrimSpace(scope)
	return s.save(ctx, doc)
}
