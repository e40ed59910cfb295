package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/attorney/internal/domain"
)

type ThreadRepo struct {
	pool *pgxpool.Pool
}

func NewThreadRepo(pool *pgxpool.Pool) *ThreadRepo {
	return &ThreadRepo{pool: pool}
}

func (r *ThreadRepo) Bind(ctx context.Context, b *domain.ThreadBinding) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO thread_bindings (thread_id, document_id, user_id, initial_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (thread_id) DO NOTHING`,
		b.ThreadID, b.DocumentID, b.UserID, string(b.InitialAgent), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("threadRepo.Bind: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := r.Get(ctx, b.ThreadID)
	if err != nil {
		return fmt.Errorf("threadRepo.Bind: %w", err)
	}
	if existing.DocumentID != b.DocumentID {
		return fmt.Errorf("threadRepo.Bind: thread %s: %w", b.ThreadID, domain.ErrConflict)
	}

	return nil
}

func (r *ThreadRepo) Get(ctx context.Context, threadID string) (*domain.ThreadBinding, error) {
	var (
		b     domain.ThreadBinding
		agent string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT thread_id, document_id, user_id, initial_agent, created_at
		 FROM thread_bindings WHERE thread_id = $1`,
		threadID,
	).Scan(&b.ThreadID, &b.DocumentID, &b.UserID, &agent, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("threadRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("threadRepo.Get: %w", err)
	}
	b.InitialAgent = domain.AgentID(agent)

	return &b, nil
}
