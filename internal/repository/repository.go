// Package repository declares the storage interfaces the trading core
// depends on (spec §4.11). No concrete persistence engine is
// authoritative — the postgres and redisidem subpackages are thin,
// swappable implementations, not the system of record spec §1 names as
// a non-goal.
package repository

import (
	"context"
	"time"

	"github.com/caesar-terminal/caesar/internal/wallet"
)

// TradeRow is a single executed trade (spec §4.12's row shape).
type TradeRow struct {
	ID              string
	UserID          string
	WalletID        string
	Mint            string
	Strategy        string
	InAmount        string
	OutAmount       string
	ClosedOutAmount string
	USDValue        string
	ExitPrice       string
	ExitPriceUSD    string
	TxHash          string
	Decimals        int
	ExitedAt        *time.Time
	ReasonCode      string
	CreatedAt       time.Time
}

// TPSLRule is a take-profit/stop-loss rule attached to an open position.
type TPSLRule struct {
	ID        string
	UserID    string
	WalletID  string
	Mint      string
	Strategy  string
	Kind      string // "tp" or "sl"
	Threshold string
	Amount    string
}

// TradeFilter narrows TradeRow queries. Zero fields are wildcards.
type TradeFilter struct {
	UserID   string
	WalletID string
	Mint     string
	Strategy string
}

// WalletStore is the subset of spec §4.11's wallet.* operations.
// FindOne's argument order (userID, then id) matches
// internal/signer.WalletStore exactly, so any Repository.Wallets value
// can be passed straight into signer.New without a shim.
type WalletStore interface {
	FindOne(ctx context.Context, userID, id string) (*wallet.Row, error)
	FindActiveForUser(ctx context.Context, userID string) (*wallet.Row, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	ListForUser(ctx context.Context, userID string, labels []string) ([]wallet.Row, error)
}

// TradeStore is spec §4.11's trade.* operations.
type TradeStore interface {
	Create(ctx context.Context, row TradeRow) error
	FindOpen(ctx context.Context, filter TradeFilter) ([]TradeRow, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// TPSLRuleStore is spec §4.11's tpSlRule.* operations.
type TPSLRuleStore interface {
	Find(ctx context.Context, userID, walletID, mint, strategy string) ([]TPSLRule, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	DeleteMany(ctx context.Context, userID, walletID, mint, strategy string) error
}

// IdempotencyStore is spec §4.11's idempotency.get/set with TTL, also
// the store spec §5's ordering guarantees require submit acknowledgment
// to be written to atomically (a retried NET failure must read-through
// before ever submitting again).
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
}

// TxFunc is the body run inside a Transactor's transactional scope.
type TxFunc func(ctx context.Context) error

// Transactor runs fn inside a transaction scope, per spec §4.11's "all
// operations are expected to be transactional when invoked inside a
// transaction(fn) scope."
type Transactor interface {
	Transaction(ctx context.Context, fn TxFunc) error
}

// Repository bundles every store the trading core depends on.
type Repository struct {
	Wallets     WalletStore
	Trades      TradeStore
	TPSLRules   TPSLRuleStore
	Idempotency IdempotencyStore
	Transactor  Transactor
}
