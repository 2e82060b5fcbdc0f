// Package engine holds the trade intent type and its pre-flight sizing
// validator — the structural and quantity checks the executor hot path
// (spec §4.9 step 3) runs before a quote is even adjusted for slippage.
package engine

import "github.com/shopspring/decimal"

// Side is the direction of a trade intent.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Status tracks a trade intent's progress through the hot path.
type Status uint8

const (
	StatusNew       Status = iota + 1
	StatusValidated
	StatusPending
	StatusFilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusValidated:
		return "validated"
	case StatusPending:
		return "pending"
	case StatusFilled:
		return "filled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TradeIntent is a single requested trade before it enters the hot path.
// Adapted from the teacher's Order (OrderID/Exchange/MarketID/AssetID
// fields replaced with Solana's single-asset Mint + wallet identity; the
// three-way OrderType dropped since every swap through this system is a
// market order against a live quote — limit/stop-loss semantics belong
// to the FIFO closer's TP/SL rules, not the order type itself).
type TradeIntent struct {
	IntentID string
	UserID   string
	WalletID string
	Mint     string
	Strategy string
	Side     Side
	AmountIn decimal.Decimal
	Status   Status
}
