// Package fifo implements the FIFO Position Closer (spec §4.12): closing
// open positions in ascending-timestamp order across fractional sells,
// sweeping dust, and rebalancing TP/SL rules proportionally.
package fifo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/caesar/internal/executor"
	"github.com/caesar-terminal/caesar/internal/repository"
)

const reasonDustSwept = "dust_swept"

// Closer implements executor.Closer against a repository.Repository.
type Closer struct {
	repo repository.Repository
	now  func() time.Time
}

// New builds a Closer. now defaults to time.Now.
func New(repo repository.Repository, now func() time.Time) *Closer {
	if now == nil {
		now = time.Now
	}
	return &Closer{repo: repo, now: now}
}

// Close implements spec §4.12's algorithm for a single completed sell.
func (c *Closer) Close(ctx context.Context, input executor.CloseInput) error {
	filter := repository.TradeFilter{
		UserID:   input.UserID,
		WalletID: input.WalletID,
		Mint:     input.Mint,
		Strategy: input.Strategy,
	}

	rows, err := c.repo.Trades.FindOpen(ctx, filter)
	if err != nil {
		return fmt.Errorf("fifo: load open rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	totalTokens := decimal.Zero
	for _, r := range rows {
		out, err := decimal.NewFromString(r.OutAmount)
		if err != nil {
			return fmt.Errorf("fifo: parse outAmount on row %s: %w", r.ID, err)
		}
		totalTokens = totalTokens.Add(out)
	}
	if totalTokens.IsZero() {
		return nil
	}

	target := input.AmountSold
	if target.GreaterThan(totalTokens) {
		target = totalTokens
	}

	still := target
	sold := decimal.Zero
	slice := 0
	now := c.now()

	for i := range rows {
		if still.LessThanOrEqual(decimal.Zero) {
			break
		}
		row := rows[i]

		rowOut, err := decimal.NewFromString(row.OutAmount)
		if err != nil {
			return fmt.Errorf("fifo: parse outAmount on row %s: %w", row.ID, err)
		}
		if rowOut.LessThanOrEqual(decimal.Zero) {
			continue
		}
		rowIn, err := decimal.NewFromString(row.InAmount)
		if err != nil {
			return fmt.Errorf("fifo: parse inAmount on row %s: %w", row.ID, err)
		}
		rowUSD, err := decimal.NewFromString(row.USDValue)
		if err != nil {
			return fmt.Errorf("fifo: parse usdValue on row %s: %w", row.ID, err)
		}
		rowClosedOut, err := decimal.NewFromString(row.ClosedOutAmount)
		if err != nil {
			rowClosedOut = decimal.Zero
		}

		rowSlice := decimal.Min(rowOut, still)
		fraction := rowSlice.Div(rowOut)

		sliceIn := rowIn.Mul(fraction)
		sliceUSD := rowUSD.Mul(fraction)

		newOut := rowOut.Sub(rowSlice)
		newIn := rowIn.Sub(sliceIn)
		newUSD := rowUSD.Sub(sliceUSD)
		newClosedOut := rowClosedOut.Add(rowSlice)

		// original is the row's all-time allocation: what remains plus
		// what has already been closed out of it.
		original := rowOut.Add(rowClosedOut)
		dustPercent := original.Mul(decimal.NewFromFloat(0.01))
		dustFloor := decimal.New(1, int32(row.Decimals-2))
		isDust := newOut.LessThanOrEqual(dustPercent) || newOut.LessThanOrEqual(dustFloor)

		fields := map[string]any{
			"in_amount":         newIn.String(),
			"out_amount":        newOut.String(),
			"usd_value":         newUSD.String(),
			"closed_out_amount": newClosedOut.String(),
		}
		if isDust {
			// Sweep the row closed in place: nothing left to trade, and
			// whatever dust remains in both legs is folded into
			// closed_out_amount so no fractional residue lingers open.
			fields["out_amount"] = "0"
			fields["in_amount"] = "0"
			fields["closed_out_amount"] = newClosedOut.Add(newOut).Add(newIn).String()
			fields["exited_at"] = now
			fields["reason_code"] = reasonDustSwept
		}
		if err := c.repo.Trades.Update(ctx, row.ID, fields); err != nil {
			return fmt.Errorf("fifo: update row %s: %w", row.ID, err)
		}

		if !isDust {
			closed := repository.TradeRow{
				UserID:       input.UserID,
				WalletID:     input.WalletID,
				Mint:         input.Mint,
				Strategy:     input.Strategy,
				InAmount:     sliceIn.String(),
				OutAmount:    "0",
				USDValue:     sliceUSD.String(),
				ExitPrice:    input.ExitPrice.String(),
				ExitPriceUSD: input.ExitPriceUSD.String(),
				TxHash:       fmt.Sprintf("%s-%d", input.TxHash, slice),
				Decimals:     row.Decimals,
				ExitedAt:     &now,
			}
			if err := c.repo.Trades.Create(ctx, closed); err != nil {
				return fmt.Errorf("fifo: record closed slice: %w", err)
			}
			slice++
		}

		sold = sold.Add(rowSlice)
		still = still.Sub(rowSlice)
	}

	return c.rebalanceRules(ctx, input, sold, totalTokens)
}

// rebalanceRules implements spec §4.12 step 6: rescale every TP/SL rule
// for this key by (1 - f), preserving the ratio between any two rules,
// or delete them outright once no open rows remain.
func (c *Closer) rebalanceRules(ctx context.Context, input executor.CloseInput, sold, totalTokens decimal.Decimal) error {
	if c.repo.TPSLRules == nil {
		return nil
	}
	f := sold.Div(totalTokens)
	if f.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	remaining, err := c.repo.Trades.FindOpen(ctx, repository.TradeFilter{
		UserID:   input.UserID,
		WalletID: input.WalletID,
		Mint:     input.Mint,
		Strategy: input.Strategy,
	})
	if err != nil {
		return fmt.Errorf("fifo: reload open rows for rebalance: %w", err)
	}
	if len(remaining) == 0 {
		return c.repo.TPSLRules.DeleteMany(ctx, input.UserID, input.WalletID, input.Mint, input.Strategy)
	}

	rules, err := c.repo.TPSLRules.Find(ctx, input.UserID, input.WalletID, input.Mint, input.Strategy)
	if err != nil {
		return fmt.Errorf("fifo: load tp/sl rules: %w", err)
	}

	retained := decimal.NewFromInt(1).Sub(f)
	for _, rule := range rules {
		amount, err := decimal.NewFromString(rule.Amount)
		if err != nil {
			continue
		}
		newAmount := amount.Mul(retained)
		if newAmount.IsZero() {
			continue
		}
		if err := c.repo.TPSLRules.Update(ctx, rule.ID, map[string]any{
			"amount": newAmount.String(),
		}); err != nil {
			return fmt.Errorf("fifo: rescale rule %s: %w", rule.ID, err)
		}
	}
	return nil
}
