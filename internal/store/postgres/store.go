package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/attorney/internal/domain"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool          *pgxpool.Pool
	documents     *DocumentRepo
	threads       *ThreadRepo
	activity      *ActivityRepo
	acquaintances *AcquaintanceRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		documents:     NewDocumentRepo(pool),
		threads:       NewThreadRepo(pool),
		activity:      NewActivityRepo(pool),
		acquaintances: NewAcquaintanceRepo(pool),
	}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Store.Migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Documents() domain.DocumentStore             { return s.documents }
func (s *Store) Threads() domain.ThreadRepository            { return s.threads }
func (s *Store) Activity() domain.ActivityRepository         { return s.activity }
func (s *Store) Acquaintances() domain.AcquaintanceDirectory { return s.acquaintances }
