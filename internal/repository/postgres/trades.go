package postgres

import (
	"context"
	"fmt"

	"github.com/caesar-terminal/caesar/internal/repository"
)

// TradeRepo implements repository.TradeStore.
type TradeRepo struct {
	pool *Pool
}

// NewTradeRepo wraps an already-connected pool.
func NewTradeRepo(pool *Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Create implements repository.TradeStore.
func (s *TradeRepo) Create(ctx context.Context, row repository.TradeRow) error {
	const q = `INSERT INTO trades (id, user_id, wallet_id, mint, strategy,
		in_amount, out_amount, closed_out_amount, usd_value, exit_price,
		exit_price_usd, tx_hash, decimals, exited_at, reason_code, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := s.pool.Exec(ctx, q, row.ID, row.UserID, row.WalletID, row.Mint, row.Strategy,
		row.InAmount, row.OutAmount, row.ClosedOutAmount, row.USDValue, row.ExitPrice,
		row.ExitPriceUSD, row.TxHash, row.Decimals, row.ExitedAt, row.ReasonCode, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create trade: %w", err)
	}
	return nil
}

// FindOpen implements repository.TradeStore: rows with a positive
// out_amount for the filter key, ordered ascending by creation time
// (spec §4.12 step 1's FIFO ordering).
func (s *TradeRepo) FindOpen(ctx context.Context, filter repository.TradeFilter) ([]repository.TradeRow, error) {
	q := `SELECT id, user_id, wallet_id, mint, strategy, in_amount, out_amount,
		closed_out_amount, usd_value, exit_price, exit_price_usd, tx_hash,
		decimals, exited_at, reason_code, created_at
		FROM trades WHERE out_amount > 0`
	args := []any{}
	i := 1
	addFilter := func(col, val string) {
		if val == "" {
			return
		}
		i++
		q += fmt.Sprintf(" AND %s = $%d", col, i-1)
		args = append(args, val)
	}
	addFilter("user_id", filter.UserID)
	addFilter("wallet_id", filter.WalletID)
	addFilter("mint", filter.Mint)
	addFilter("strategy", filter.Strategy)
	q += " ORDER BY created_at ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find open trades: %w", err)
	}
	defer rows.Close()

	var out []repository.TradeRow
	for rows.Next() {
		var r repository.TradeRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.WalletID, &r.Mint, &r.Strategy,
			&r.InAmount, &r.OutAmount, &r.ClosedOutAmount, &r.USDValue, &r.ExitPrice,
			&r.ExitPriceUSD, &r.TxHash, &r.Decimals, &r.ExitedAt, &r.ReasonCode, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update implements repository.TradeStore.
func (s *TradeRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	return updateByID(ctx, s.pool, "trades", id, fields)
}
