package postgres

import (
	"context"
	"fmt"

	"github.com/caesar-terminal/caesar/internal/repository"
)

// TPSLRuleRepo implements repository.TPSLRuleStore.
type TPSLRuleRepo struct {
	pool *Pool
}

// NewTPSLRuleRepo wraps an already-connected pool.
func NewTPSLRuleRepo(pool *Pool) *TPSLRuleRepo {
	return &TPSLRuleRepo{pool: pool}
}

// Find implements repository.TPSLRuleStore.
func (s *TPSLRuleRepo) Find(ctx context.Context, userID, walletID, mint, strategy string) ([]repository.TPSLRule, error) {
	const q = `SELECT id, user_id, wallet_id, mint, strategy, kind, threshold, amount
		FROM tp_sl_rules WHERE user_id = $1 AND wallet_id = $2 AND mint = $3 AND strategy = $4`
	rows, err := s.pool.Query(ctx, q, userID, walletID, mint, strategy)
	if err != nil {
		return nil, fmt.Errorf("postgres: find tp/sl rules: %w", err)
	}
	defer rows.Close()

	var out []repository.TPSLRule
	for rows.Next() {
		var r repository.TPSLRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.WalletID, &r.Mint, &r.Strategy, &r.Kind, &r.Threshold, &r.Amount); err != nil {
			return nil, fmt.Errorf("postgres: scan tp/sl rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update implements repository.TPSLRuleStore.
func (s *TPSLRuleRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	return updateByID(ctx, s.pool, "tp_sl_rules", id, fields)
}

// DeleteMany implements repository.TPSLRuleStore: removes every rule for
// a (userId,walletId,mint,strategy) key, used when no open rows remain
// for that key (spec §4.12 step 6).
func (s *TPSLRuleRepo) DeleteMany(ctx context.Context, userID, walletID, mint, strategy string) error {
	const q = `DELETE FROM tp_sl_rules WHERE user_id = $1 AND wallet_id = $2 AND mint = $3 AND strategy = $4`
	_, err := s.pool.Exec(ctx, q, userID, walletID, mint, strategy)
	if err != nil {
		return fmt.Errorf("postgres: delete tp/sl rules: %w", err)
	}
	return nil
}
