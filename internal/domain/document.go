package domain

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxRepresentatives = 3
	MaxWitnesses       = 2
)

type ConditionType string

const (
	ConditionTypeAsset          ConditionType = "asset"
	ConditionTypeRepresentative ConditionType = "representative"
	ConditionTypeGeneral        ConditionType = "general"
)

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionTypeAsset, ConditionTypeRepresentative, ConditionTypeGeneral:
		return true
	}
	return false
}

// Principal is the person granting authority. It is fixed when the document is created.
type Principal struct {
	UserID     uuid.UUID `json:"userId"`
	FullName   string    `json:"fullName"`
	NationalID string    `json:"nationalId"`
	Address    string    `json:"address"`
}

type Representative struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"fullName"`
	NationalID   string    `json:"nationalId"`
	Address      string    `json:"address"`
	Relationship string    `json:"relationship,omitempty"`
}

type Witness struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"fullName"`
	NationalIDNumber string    `json:"nationalIdNumber"`
}

type Condition struct {
	ID       uuid.UUID     `json:"id"`
	Type     ConditionType `json:"type"`
	Text     string        `json:"text"`
	TargetID *uuid.UUID    `json:"targetId,omitempty"`
}

// Document is the aggregate the specialist agents author together.
type Document struct {
	ID              uuid.UUID        `json:"id"`
	Principal       Principal        `json:"principal"`
	Scope           string           `json:"scope"`
	Representatives []Representative `json:"representatives"`
	Witnesses       []Witness        `json:"witnesses"`
	Conditions      []Condition      `json:"conditions"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// NewDocument returns the default document created on first access.
func NewDocument(id uuid.UUID) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:              id,
		Representatives: []Representative{},
		Witnesses:       []Witness{},
		Conditions:      []Condition{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Representatives = slices.Clone(d.Representatives)
	c.Witnesses = slices.Clone(d.Witnesses)
	c.Conditions = make([]Condition, len(d.Conditions))
	for i, cond := range d.Conditions {
		if cond.TargetID != nil {
			target := *cond.TargetID
			cond.TargetID = &target
		}
		c.Conditions[i] = cond
	}
	if c.Representatives == nil {
		c.Representatives = []Representative{}
	}
	if c.Witnesses == nil {
		c.Witnesses = []Witness{}
	}
	return &c
}

// IsEmpty reports whether nothing beyond the principal has been authored yet.
func (d *Document) IsEmpty() bool {
	return strings.TrimSpace(d.Scope) == "" &&
		len(d.Representatives) == 0 &&
		len(d.Witnesses) == 0 &&
		len(d.Conditions) == 0
}

func (d *Document) RepresentativeIndex(id uuid.UUID) int {
	return slices.IndexFunc(d.Representatives, func(r Representative) bool { return r.ID == id })
}

func (d *Document) WitnessIndex(id uuid.UUID) int {
	return slices.IndexFunc(d.Witnesses, func(w Witness) bool { return w.ID == id })
}

func (d *Document) ConditionIndex(id uuid.UUID) int {
	return slices.IndexFunc(d.Conditions, func(c Condition) bool { return c.ID == id })
}

// DocumentStore is the persistence contract. Get creates a default document
// for an unseen id. Concurrent writers to the same document are not supported;
// callers serialize them.
type DocumentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	Put(ctx context.Context, id uuid.UUID, doc *Document) error
}
