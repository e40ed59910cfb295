package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/attorney/internal/domain"
)

// DocumentRepo stores each document as a JSONB body.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Get returns the document, creating the default one on first access.
func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := r.load(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("documentRepo.Get: %w", err)
	}

	body, err := json.Marshal(domain.NewDocument(id))
	if err != nil {
		return nil, fmt.Errorf("documentRepo.Get: marshal default: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (id, body, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (id) DO NOTHING`,
		id, body,
	)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.Get: create default: %w", err)
	}

	doc, err = r.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.Get: reload: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepo) Put(ctx context.Context, id uuid.UUID, doc *domain.Document) error {
	stored := doc.Clone()
	stored.ID = id
	stored.UpdatedAt = time.Now().UTC()

	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("documentRepo.Put: marshal: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (id, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		id, body, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("documentRepo.Put: %w", err)
	}

	return nil
}

func (r *DocumentRepo) load(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var body []byte

	err := r.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE id = $1`,
		id,
	).Scan(&body)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	return doc.Clone(), nil
}
