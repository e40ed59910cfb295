package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityRecord is pushed to a thread after every mutation and explicit validation.
type ActivityRecord struct {
	ID          uuid.UUID    `json:"id"`
	ThreadID    string       `json:"threadId"`
	DocumentID  uuid.UUID    `json:"documentId"`
	Summary     string       `json:"summary"`
	Details     string       `json:"details,omitempty"`
	AuditResult *AuditResult `json:"auditResult,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

type ActivityRepository interface {
	Append(ctx context.Context, rec *ActivityRecord) error
	ListByThread(ctx context.Context, threadID string, limit, offset int) ([]*ActivityRecord, error)
}
