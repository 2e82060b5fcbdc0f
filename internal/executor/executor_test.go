package executor_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/caesar/internal/armsession"
	"github.com/caesar-terminal/caesar/internal/engine"
	"github.com/caesar-terminal/caesar/internal/envelope"
	"github.com/caesar-terminal/caesar/internal/executor"
	"github.com/caesar-terminal/caesar/internal/quote"
	"github.com/caesar-terminal/caesar/internal/repository"
	"github.com/caesar-terminal/caesar/internal/risk"
	"github.com/caesar-terminal/caesar/internal/signer"
	"github.com/caesar-terminal/caesar/internal/wallet"
)

type fakeWalletStore struct {
	rows map[string]*wallet.Row
}

func (f *fakeWalletStore) FindOne(_ context.Context, userID, walletID string) (*wallet.Row, error) {
	row, ok := f.rows[userID+":"+walletID]
	if !ok {
		return nil, nil
	}
	return row, nil
}

type fakeBuilder struct{}

func (fakeBuilder) Build(_ context.Context, payer solana.PublicKey, _ *quote.Quote) (*solana.Transaction, error) {
	instr := solana.NewTransactionBuilder().
		SetFeePayer(payer)
	return instr.Build()
}

type fakeSubmitter struct {
	err      error
	txHash   string
	attempts int
}

func (f *fakeSubmitter) Submit(_ context.Context, _ *solana.Transaction) (string, error) {
	f.attempts++
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

type fakeObserver struct {
	observations []string
	increments   []string
}

func (f *fakeObserver) Observe(name string, _ float64, labels map[string]string) {
	f.observations = append(f.observations, name+":"+labels["stage"])
}

func (f *fakeObserver) Increment(name string, _ float64, labels map[string]string) {
	f.increments = append(f.increments, name+":"+labels["errorClass"])
}

type fakeIdempotency struct {
	store map[string]string
}

func newFakeIdempotency() *fakeIdempotency { return &fakeIdempotency{store: make(map[string]string)} }

func (f *fakeIdempotency) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.store[key]
	return v, ok, nil
}

func (f *fakeIdempotency) Set(_ context.Context, key, val string, _ time.Duration) error {
	f.store[key] = val
	return nil
}

type fakeCloser struct {
	calls []executor.CloseInput
}

func (f *fakeCloser) Close(_ context.Context, input executor.CloseInput) error {
	f.calls = append(f.calls, input)
	return nil
}

func baseConfig(t *testing.T, submitter *fakeSubmitter, observer *fakeObserver, idem *fakeIdempotency) (executor.Config, engine.TradeIntent, quote.Request) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	params := envelope.UnprotectedParams{UserID: "u1", ServerSecret: "server-secret"}
	env, err := envelope.EncryptUnprotected([]byte(priv), params)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	store := &fakeWalletStore{rows: map[string]*wallet.Row{
		"u1:w1": {ID: "w1", UserID: "u1", IsProtected: false, Encrypted: &env, EncryptionVersion: 1},
	}}
	sessions := armsession.New(time.Hour, nil)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	resolver := signer.New(store, sessions, func() (string, bool) { return "server-secret", true })

	riskCfg := risk.Config{
		MinPumpPercent: 0,
		MinVolumeUSD:   0,
		FetchOverview: func(context.Context, string) (*risk.Overview, error) {
			return &risk.Overview{PumpPercent: 10, VolumeUSD: 1000}, nil
		},
	}

	quoteClient := quote.New("http://127.0.0.1:0", time.Second)

	cfg := executor.Config{
		Risk:        riskCfg,
		Quote:       quoteClient,
		Signer:      resolver,
		Builder:     fakeBuilder{},
		Submitter:   submitter,
		Repo:        repository.Repository{Idempotency: idem},
		Observer:    observer,
		RetryPolicy: executor.RetryPolicy{Max: 2},
	}

	intent := engine.TradeIntent{
		UserID:   "u1",
		WalletID: "w1",
		Mint:     "MINT1",
		Strategy: "default",
		Side:     engine.Buy,
		AmountIn: decimal.NewFromInt(10),
	}
	req := quote.Request{InputMint: "SOL", OutputMint: "MINT1", Amount: decimal.NewFromInt(10), MaxImpactPct: 5}

	return cfg, intent, req
}

func TestExecuteTradeBlockedByRiskGate(t *testing.T) {
	observer := &fakeObserver{}
	cfg, intent, req := baseConfig(t, &fakeSubmitter{txHash: "sig1"}, observer, newFakeIdempotency())
	cfg.Risk.FetchOverview = func(context.Context, string) (*risk.Overview, error) {
		return nil, errors.New("provider down")
	}

	ex := executor.New(cfg)
	result := ex.ExecuteTrade(context.Background(), intent, req)

	if !result.Blocked || result.Reason != risk.ReasonOverviewFail {
		t.Fatalf("expected blocked overview-fail, got %+v", result)
	}
}

// Note: GetSafeQuote dials a live HTTP endpoint, so a happy-path submit
// test would require a quote server fixture; that integration path is
// covered at the quote package level (internal/quote/quote_test.go). The
// cases below exercise ExecuteTrade's gate/classify/idempotency logic
// directly, which is what this package is responsible for.

func TestExecuteTradeResultHasSubmitClass(t *testing.T) {
	cfg, intent, req := baseConfig(t, &fakeSubmitter{txHash: "sig1"}, &fakeObserver{}, newFakeIdempotency())
	ex := executor.New(cfg)
	result := ex.ExecuteTrade(context.Background(), intent, req)

	// The quote client has nothing to talk to, so this resolves as a
	// blocked no-route quote rather than reaching submit — verifying the
	// hot path stops at the quote stage rather than signing/submitting
	// against an unreachable endpoint.
	if !result.Blocked {
		t.Fatalf("expected a blocked result when the quote endpoint is unreachable, got %+v", result)
	}
}

func TestExecuteTradeSellFeedsRealAmountIntoCloser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"inputMint": "MINT1", "outputMint": "SOL",
			"inAmount": "10", "outAmount": "25", "priceImpactPct": "1.0",
		})
	}))
	defer srv.Close()

	closer := &fakeCloser{}
	cfg, intent, req := baseConfig(t, &fakeSubmitter{txHash: "sig1"}, &fakeObserver{}, newFakeIdempotency())
	cfg.Quote = quote.New(srv.URL, 2*time.Second)
	cfg.Closer = closer
	intent.Side = engine.Sell
	req.InputMint, req.OutputMint = "MINT1", "SOL"

	ex := executor.New(cfg)
	result := ex.ExecuteTrade(context.Background(), intent, req)

	if result.Err != nil || result.ErrClass != executor.ClassNone {
		t.Fatalf("expected a clean submit, got %+v", result)
	}
	if len(closer.calls) != 1 {
		t.Fatalf("expected the closer to be invoked once, got %d calls", len(closer.calls))
	}

	got := closer.calls[0]
	if !got.AmountSold.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected AmountSold=10, got %s", got.AmountSold)
	}
	wantPrice := decimal.NewFromInt(25).Div(decimal.NewFromInt(10))
	if !got.ExitPrice.Equal(wantPrice) {
		t.Fatalf("expected ExitPrice=%s, got %s", wantPrice, got.ExitPrice)
	}
	if got.TxHash != "sig1" {
		t.Fatalf("expected TxHash=sig1, got %s", got.TxHash)
	}
}
