package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/attorney/internal/domain"
)

// AcquaintanceRepo reads the acquaintance directory from Postgres.
type AcquaintanceRepo struct {
	pool *pgxpool.Pool
}

func NewAcquaintanceRepo(pool *pgxpool.Pool) *AcquaintanceRepo {
	return &AcquaintanceRepo{pool: pool}
}

func (r *AcquaintanceRepo) ListAcquaintances(ctx context.Context, userID uuid.UUID) ([]domain.Acquaintance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, full_name, relationship, national_id_number, address, contact
		 FROM acquaintances WHERE user_id = $1 ORDER BY full_name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("acquaintanceRepo.ListAcquaintances: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Acquaintance, 0)
	for rows.Next() {
		var a domain.Acquaintance

		err = rows.Scan(&a.ID, &a.UserID, &a.FullName, &a.Relationship, &a.NationalIDNumber, &a.Address, &a.Contact)
		if err != nil {
			return nil, fmt.Errorf("acquaintanceRepo.ListAcquaintances: scan: %w", err)
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("acquaintanceRepo.ListAcquaintances: rows: %w", err)
	}

	return out, nil
}

func (r *AcquaintanceRepo) GetAcquaintance(ctx context.Context, userID, acquaintanceID uuid.UUID) (*domain.Acquaintance, error) {
	var a domain.Acquaintance

	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, full_name, relationship, national_id_number, address, contact
		 FROM acquaintances WHERE user_id = $1 AND id = $2`,
		userID, acquaintanceID,
	).Scan(&a.ID, &a.UserID, &a.FullName, &a.Relationship, &a.NationalIDNumber, &a.Address, &a.Contact)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("acquaintanceRepo.GetAcquaintance: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("acquaintanceRepo.GetAcquaintance: %w", err)
	}

	return &a, nil
}
