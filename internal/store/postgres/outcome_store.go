package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates an OutcomeStore backed by the given connection pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

var _ domain.OutcomeStore = (*OutcomeStore)(nil)

const outcomeSelectCols = `id, status, trigger_venue, trigger_tx_id, direction,
	size_base, gap_before, gap_after, projected_usd, net_usd,
	exec_state, buy_tx_id, sell_tx_id, reason, started_at, finished_at`

func scanOutcomeRows(rows pgx.Rows) ([]domain.CycleOutcome, error) {
	var outcomes []domain.CycleOutcome
	for rows.Next() {
		var o domain.CycleOutcome
		if err := rows.Scan(
			&o.ID, &o.Status, &o.TriggerVenue, &o.TriggerTxID, &o.Direction,
			&o.SizeBase, &o.GapBefore, &o.GapAfter, &o.ProjectedUSD, &o.NetUSD,
			&o.ExecState, &o.BuyTxID, &o.SellTxID, &o.Reason, &o.StartedAt, &o.FinishedAt,
		); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Create inserts one cycle outcome. Redelivery of the same cycle id is
// silently skipped.
func (s *OutcomeStore) Create(ctx context.Context, o domain.CycleOutcome) error {
	const query = `
		INSERT INTO cycle_outcomes (
			id, status, trigger_venue, trigger_tx_id, direction,
			size_base, gap_before, gap_after, projected_usd, net_usd,
			exec_state, buy_tx_id, sell_tx_id, reason, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Status, o.TriggerVenue, o.TriggerTxID, o.Direction,
		o.SizeBase, o.GapBefore, o.GapAfter, o.ProjectedUSD, o.NetUSD,
		o.ExecState, o.BuyTxID, o.SellTxID, o.Reason, o.StartedAt, o.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert outcome %s: %w", o.ID, err)
	}
	return nil
}

// ListRecent returns the newest outcomes, most recent first.
func (s *OutcomeStore) ListRecent(ctx context.Context, limit int) ([]domain.CycleOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+outcomeSelectCols+`
		 FROM cycle_outcomes
		 ORDER BY finished_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent outcomes: %w", err)
	}
	defer rows.Close()

	outcomes, err := scanOutcomeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan outcomes: %w", err)
	}
	return outcomes, nil
}

// ListBefore returns outcomes that finished before the cutoff, oldest first,
// for archival.
func (s *OutcomeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.CycleOutcome, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+outcomeSelectCols+`
		 FROM cycle_outcomes
		 WHERE finished_at < $1
		 ORDER BY finished_at ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes before %s: %w", cutoff, err)
	}
	defer rows.Close()

	outcomes, err := scanOutcomeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan outcomes: %w", err)
	}
	return outcomes, nil
}

// DeleteBefore removes archived outcomes and reports how many went.
func (s *OutcomeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cycle_outcomes WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete outcomes before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}
