package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by Validate.
var (
	ErrInvalidSide       = errors.New("invalid trade side")
	ErrAmountNonPositive = errors.New("amount must be positive")
	ErrSizeTooSmall      = errors.New("sized amount below minimum lot size")
)

// Sizer adjusts a requested inAmount down to what the liquidity sizer
// permits (spec §4.9 step 3), returning the adjusted amount. A nil Sizer
// is a no-op pass-through.
type Sizer interface {
	AdjustInAmount(mint string, amountIn decimal.Decimal) (decimal.Decimal, error)
}

// Constraints bounds the sized amount after a Sizer (if any) has run.
type Constraints struct {
	MinAmountIn decimal.Decimal
}

// DefaultConstraints is used when a Validator is built without explicit
// constraints.
var DefaultConstraints = Constraints{MinAmountIn: decimal.Zero}

// Validator performs pre-flight checks on a TradeIntent before it enters
// the quote/sign/submit pipeline. It fails fast: the first failing check
// returns an error and the intent is rejected. Adapted from the
// teacher's per-exchange Validator (constraints keyed by
// adapter.Exchange, a TradingGate circuit-breaker check, and a
// slippage-cap placeholder comment) generalized to a single Solana
// sizing path: the circuit-breaker role is now played directly by
// internal/httpclient's breaker on the quote/submit calls themselves,
// so this validator only owns structural and sizing checks.
type Validator struct {
	sizer       Sizer
	constraints Constraints
}

// NewValidator creates a Validator. sizer may be nil.
func NewValidator(sizer Sizer, constraints Constraints) *Validator {
	return &Validator{sizer: sizer, constraints: constraints}
}

// Validate runs all pre-flight checks, applying the Sizer to intent's
// AmountIn in place. On success intent.Status becomes StatusValidated;
// on failure it becomes StatusRejected.
func (v *Validator) Validate(intent *TradeIntent) error {
	if err := v.validate(intent); err != nil {
		intent.Status = StatusRejected
		return err
	}
	intent.Status = StatusValidated
	return nil
}

func (v *Validator) validate(intent *TradeIntent) error {
	if intent.Side != Buy && intent.Side != Sell {
		return ErrInvalidSide
	}
	if intent.AmountIn.Sign() <= 0 {
		return ErrAmountNonPositive
	}

	sized := intent.AmountIn
	if v.sizer != nil {
		adjusted, err := v.sizer.AdjustInAmount(intent.Mint, intent.AmountIn)
		if err != nil {
			return fmt.Errorf("sizing: %w", err)
		}
		sized = adjusted
	}

	if sized.LessThan(v.constraints.MinAmountIn) {
		return fmt.Errorf("%w: %s < minimum %s", ErrSizeTooSmall, sized, v.constraints.MinAmountIn)
	}

	intent.AmountIn = sized
	return nil
}
