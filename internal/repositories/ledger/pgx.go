package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/domain"
	"github.com/AhmedNaeem5575/insta-story/pkg/errors"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// sq builds queries with the dollar placeholders pgx expects.
var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PgxRepository is the Postgres-backed ledger, for deployments that track
// many accounts from one database instead of per-account JSON files. The
// FilterNew/MarkProcessed contract is identical to the file backend.
type PgxRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, log logger.Logger) *PgxRepository {
	return &PgxRepository{pool: pool, logger: log}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) ProcessedIDs(ctx context.Context, username string) (map[string]struct{}, error) {
	query, args, err := sq.
		Select("story_id").
		From("story_ledger").
		Where("username = ?", username).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for %s: %w", username, err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return set, nil
}

func (r *PgxRepository) FilterNew(ctx context.Context, username string, candidates []domain.StoryItem) ([]domain.StoryItem, error) {
	processed, err := r.ProcessedIDs(ctx, username)
	if err != nil {
		return nil, err
	}
	return filterNew(processed, candidates), nil
}

func (r *PgxRepository) MarkProcessed(ctx context.Context, username string, items []domain.StoryItem) error {
	if len(items) == 0 {
		return nil
	}

	builder := sq.
		Insert("story_ledger").
		Columns("username", "story_id", "created_at")

	now := time.Now().UTC()
	rows := 0
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		builder = builder.Values(username, key, now)
		rows++
	}
	if rows == 0 {
		return nil
	}

	query, args, err := builder.
		Suffix("ON CONFLICT (username, story_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: failed to mark stories processed for %s: %v", errors.ErrLedgerIO, username, err)
	}
	return nil
}
