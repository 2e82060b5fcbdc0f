// Package postgres is a thin, non-authoritative reference implementation
// of the repository interfaces (spec §4.11) against pgx/v5. It exists to
// give the abstract repository boundary a concrete backing for local
// development and tests; a persistent storage engine remains out of
// scope (spec §1 Non-goals).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caesar-terminal/caesar/internal/envelope"
	"github.com/caesar-terminal/caesar/internal/repository"
	"github.com/caesar-terminal/caesar/internal/wallet"
)

// Pool is the pgx handle every repo in this package shares.
type Pool = pgxpool.Pool

// Transactor implements repository.Transactor against a shared pool.
type Transactor struct {
	pool *Pool
}

// NewTransactor wraps an already-connected pool. Callers own its lifecycle.
func NewTransactor(pool *Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Transaction implements repository.Transactor.
func (t *Transactor) Transaction(ctx context.Context, fn repository.TxFunc) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// WalletRepo implements repository.WalletStore.
type WalletRepo struct {
	pool *Pool
}

// NewWalletRepo wraps an already-connected pool.
func NewWalletRepo(pool *Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// FindOne implements repository.WalletStore.
func (r *WalletRepo) FindOne(ctx context.Context, userID, id string) (*wallet.Row, error) {
	const q = `SELECT id, user_id, label, public_key, is_protected, encrypted,
		private_key, passphrase_hash, encryption_version
		FROM wallets WHERE id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, q, id, userID)
	return scanWalletRow(row)
}

// FindActiveForUser implements repository.WalletStore.
func (r *WalletRepo) FindActiveForUser(ctx context.Context, userID string) (*wallet.Row, error) {
	const q = `SELECT id, user_id, label, public_key, is_protected, encrypted,
		private_key, passphrase_hash, encryption_version
		FROM wallets WHERE user_id = $1 AND is_active ORDER BY created_at DESC LIMIT 1`
	row := r.pool.QueryRow(ctx, q, userID)
	return scanWalletRow(row)
}

// ListForUser implements repository.WalletStore.
func (r *WalletRepo) ListForUser(ctx context.Context, userID string, labels []string) ([]wallet.Row, error) {
	q := `SELECT id, user_id, label, public_key, is_protected, encrypted,
		private_key, passphrase_hash, encryption_version
		FROM wallets WHERE user_id = $1`
	args := []any{userID}
	if len(labels) > 0 {
		q += ` AND label = ANY($2)`
		args = append(args, labels)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer rows.Close()

	var out []wallet.Row
	for rows.Next() {
		row, err := scanWalletRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// Update implements repository.WalletStore. fields is applied as a
// column=value SET list; callers are trusted to pass known column names
// since this is an internal repository boundary, not a user-facing API.
func (r *WalletRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	return updateByID(ctx, r.pool, "wallets", id, fields)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWalletRow(row rowScanner) (*wallet.Row, error) {
	var (
		r             wallet.Row
		publicKey     []byte
		encryptedJSON []byte
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Label, &publicKey, &r.IsProtected, &encryptedJSON,
		&r.PrivateKey, &r.PassphraseHash, &r.EncryptionVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan wallet row: %w", err)
	}
	if len(publicKey) == 32 {
		copy(r.PublicKey[:], publicKey)
	}
	if len(encryptedJSON) > 0 {
		var env envelope.Envelope
		if err := json.Unmarshal(encryptedJSON, &env); err != nil {
			return nil, fmt.Errorf("postgres: decode envelope: %w", err)
		}
		r.Encrypted = &env
	}
	return &r, nil
}

// Open builds a repository.Repository whose Wallets/Trades/TPSLRules/
// Transactor all share pool. Idempotency is deliberately left nil here —
// that store is backed by redisidem, not postgres; callers assemble the
// final repository.Repository themselves.
func Open(pool *Pool) repository.Repository {
	return repository.Repository{
		Wallets:    NewWalletRepo(pool),
		Trades:     NewTradeRepo(pool),
		TPSLRules:  NewTPSLRuleRepo(pool),
		Transactor: NewTransactor(pool),
	}
}

func updateByID(ctx context.Context, pool *pgxpool.Pool, table, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := ""
	args := []any{id}
	i := 2
	for col, val := range fields {
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", col, i)
		args = append(args, val)
		i++
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, set)
	_, err := pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", table, err)
	}
	return nil
}
