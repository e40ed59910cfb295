package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
)

// ThreadLookup resolves a thread's binding. ThreadService satisfies it.
type ThreadLookup interface {
	Binding(ctx context.Context, threadID string) (*domain.ThreadBinding, error)
}

// Scope binds a decoded request to the document at documentID on behalf of
// userID. The envelope may not name another document, and a thread it names
// must belong to the caller and be bound to that same document. Threads of
// other users look missing.
func Scope(ctx context.Context, threads ThreadLookup, req flow.Request, documentID, userID uuid.UUID) error {
	head := req.Head()
	if head.DocumentID != uuid.Nil && head.DocumentID != documentID {
		return domain.Protocolf("envelope documentId %s does not match %s", head.DocumentID, documentID)
	}

	if head.ThreadID != "" {
		if threads == nil {
			return domain.NotFoundf("thread %s not found", head.ThreadID)
		}
		b, err := threads.Binding(ctx, head.ThreadID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NotFoundf("thread %s not found", head.ThreadID)
		case err != nil:
			return fmt.Errorf("v1.Scope(%s): %w", head.ThreadID, err)
		case b.UserID != userID:
			return domain.NotFoundf("thread %s not found", head.ThreadID)
		case b.DocumentID != documentID:
			return domain.Protocolf("thread %s is bound to document %s, not %s", head.ThreadID, b.DocumentID, documentID)
		}
	}

	head.DocumentID = documentID
	head.Caller = userID
	BindUser(req, userID)
	return nil
}
