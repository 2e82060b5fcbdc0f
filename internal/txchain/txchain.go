// Package txchain builds and submits Solana transactions against an RPC
// endpoint, implementing internal/executor's TxBuilder/TxSubmitter
// interfaces. Grounded on the retrieved pack's own
// rpc.New/GetRecentBlockhash/SendTransactionWithOpts client shape.
package txchain

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/caesar-terminal/caesar/internal/quote"
)

// Client wraps an RPC endpoint for building and submitting transactions.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// New builds a Client against endpoint. commitment defaults to
// CommitmentFinalized when empty.
func New(endpoint string, commitment rpc.CommitmentType) *Client {
	if commitment == "" {
		commitment = rpc.CommitmentFinalized
	}
	return &Client{rpc: rpc.New(endpoint), commitment: commitment}
}

// Build decodes the router's pre-built swap transaction for q and
// refreshes its blockhash against the current chain tip, so a slow
// signer resolution never submits against a stale blockhash.
func (c *Client) Build(ctx context.Context, payer solana.PublicKey, q *quote.Quote) (*solana.Transaction, error) {
	if q.SwapTransaction == "" {
		return nil, fmt.Errorf("txchain: quote carries no swap transaction")
	}

	tx, err := solana.TransactionFromBase64(q.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("txchain: decode swap transaction: %w", err)
	}

	recent, err := c.rpc.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("txchain: get recent blockhash: %w", err)
	}
	tx.Message.RecentBlockhash = recent.Value.Blockhash

	if len(tx.Message.AccountKeys) > 0 && !tx.Message.AccountKeys[0].Equals(payer) {
		return nil, fmt.Errorf("txchain: quote transaction fee payer does not match resolved signer")
	}

	return tx, nil
}

// Submit sends tx and returns its signature as the txHash.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (string, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, false, c.commitment)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}
