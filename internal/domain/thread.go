package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ThreadBinding ties a conversation thread to one document. It is written
// once when the thread is opened and is read-only afterwards.
type ThreadBinding struct {
	ThreadID     string    `json:"threadId"`
	DocumentID   uuid.UUID `json:"documentId"`
	UserID       uuid.UUID `json:"userId"`
	InitialAgent AgentID   `json:"initialAgent"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewThreadBinding validates the required fields.
func NewThreadBinding(threadID string, documentID, userID uuid.UUID, initial AgentID) (*ThreadBinding, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, errors.New("thread: thread ID is required")
	}
	if documentID == uuid.Nil {
		return nil, errors.New("thread: document ID is required")
	}
	if !initial.Valid() {
		return nil, errors.New("thread: initial agent is invalid")
	}
	return &ThreadBinding{
		ThreadID:     threadID,
		DocumentID:   documentID,
		UserID:       userID,
		InitialAgent: initial,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ThreadRepository stores thread bindings. Bind is idempotent for an identical
// document and returns ErrConflict when the thread is bound elsewhere.
type ThreadRepository interface {
	Bind(ctx context.Context, b *ThreadBinding) error
	Get(ctx context.Context, threadID string) (*ThreadBinding, error)
}
