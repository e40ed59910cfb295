package domain

import (
	"context"

	"github.com/google/uuid"
)

// Acquaintance is an external directory entry eligible to become a
// representative or a witness.
type Acquaintance struct {
	ID               uuid.UUID `json:"acquaintanceId"`
	UserID           uuid.UUID `json:"userId"`
	FullName         string    `json:"fullName"`
	Relationship     string    `json:"relationship"`
	NationalIDNumber string    `json:"nationalIdNumber"`
	Address          string    `json:"address"`
	Contact          string    `json:"contact,omitempty"`
}

// AcquaintanceDirectory is the external people directory of a principal.
type AcquaintanceDirectory interface {
	ListAcquaintances(ctx context.Context, userID uuid.UUID) ([]Acquaintance, error)
	GetAcquaintance(ctx context.Context, userID, acquaintanceID uuid.UUID) (*Acquaintance, error)
}
