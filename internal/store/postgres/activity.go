package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/attorney/internal/domain"
)

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) Append(ctx context.Context, rec *domain.ActivityRecord) error {
	var result []byte
	if rec.AuditResult != nil {
		var err error
		result, err = json.Marshal(rec.AuditResult)
		if err != nil {
			return fmt.Errorf("activityRepo.Append: marshal audit result: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_records (id, thread_id, document_id, summary, details, audit_result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ThreadID, rec.DocumentID, rec.Summary, rec.Details, result, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.Append: %w", err)
	}

	return nil
}

func (r *ActivityRepo) ListByThread(ctx context.Context, threadID string, limit, offset int) ([]*domain.ActivityRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, document_id, summary, details, audit_result, created_at
		 FROM activity_records WHERE thread_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		threadID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByThread: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.ActivityRecord, 0)
	for rows.Next() {
		var (
			rec    domain.ActivityRecord
			result []byte
		)

		err = rows.Scan(&rec.ID, &rec.ThreadID, &rec.DocumentID, &rec.Summary, &rec.Details, &result, &rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("activityRepo.ListByThread: scan: %w", err)
		}
		if len(result) > 0 {
			rec.AuditResult = &domain.AuditResult{}
			if err = json.Unmarshal(result, rec.AuditResult); err != nil {
				return nil, fmt.Errorf("activityRepo.ListByThread: unmarshal audit result: %w", err)
			}
		}
		records = append(records, &rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("activityRepo.ListByThread: rows: %w", err)
	}

	return records, nil
}
