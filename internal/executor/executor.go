// Package executor implements the Trade Executor Hot Path (spec §4.9):
// gate → quote → size → resolve signer → build → sign → submit →
// classify → record → (sell path) FIFO close. Every external
// dependency — the quote client, the signer resolver, transaction
// building/submission, the repository, the metrics sink — is injected,
// so the hot path itself stays a pure orchestration of those pieces.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	solana "github.com/gagliardetto/solana-go"

	"github.com/caesar-terminal/caesar/internal/engine"
	"github.com/caesar-terminal/caesar/internal/quote"
	"github.com/caesar-terminal/caesar/internal/repository"
	"github.com/caesar-terminal/caesar/internal/risk"
	"github.com/caesar-terminal/caesar/internal/signer"
)

// Stage labels for hotpath_ms observations (spec §4.9 step 8).
const (
	StageQuote  = "quote"
	StageBuild  = "build"
	StageSign   = "sign"
	StageSubmit = "submit"
	StageTotal  = "total"
)

// SubmitClass is the stable errClass spec §4.9 step 7 classifies a
// submit outcome into.
type SubmitClass string

const (
	ClassNone    SubmitClass = "NONE"
	ClassNet     SubmitClass = "NET"
	ClassUser    SubmitClass = "USER"
	ClassUnknown SubmitClass = "UNKNOWN"
)

var (
	netErrPattern  = regexp.MustCompile(`(?i)node is behind|connection|timeout`)
	userErrPattern = regexp.MustCompile(`(?i)slippage exceeded|insufficient|block height exceeded`)
)

// classifySubmitError implements spec §4.9 step 7's regex classification.
func classifySubmitError(err error) SubmitClass {
	if err == nil {
		return ClassNone
	}
	msg := err.Error()
	switch {
	case netErrPattern.MatchString(msg):
		return ClassNet
	case userErrPattern.MatchString(msg):
		return ClassUser
	default:
		return ClassUnknown
	}
}

// TxBuilder builds an unsigned transaction message for a quote.
type TxBuilder interface {
	Build(ctx context.Context, payer solana.PublicKey, q *quote.Quote) (*solana.Transaction, error)
}

// TxSubmitter submits a fully-signed transaction and returns its hash.
type TxSubmitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (txHash string, err error)
}

// Observer receives hotpath_ms and submit_result_total observations
// (spec §4.9 step 8). Label values are passed unredacted; redacting them
// is the Observer's job (internal/metrics.Sink does so).
type Observer interface {
	Observe(name string, value float64, labels map[string]string)
	Increment(name string, n float64, labels map[string]string)
}

// Closer performs the FIFO Position Closer pass for a completed sell
// (spec §4.12), invoked from ExecuteTrade after a successful sell submit.
type Closer interface {
	Close(ctx context.Context, input CloseInput) error
}

// CloseInput is what the executor hands the FIFO closer after a
// successful sell submit.
type CloseInput struct {
	UserID, WalletID, Mint, Strategy string
	AmountSold                       decimal.Decimal
	ExitPrice, ExitPriceUSD          decimal.Decimal
	TxHash                           string
	Decimals                         int
}

// RetryPolicy bounds NET-class retries on submit (spec §4.9 step 7).
type RetryPolicy struct {
	Max int
}

// Config bundles everything the hot path depends on.
type Config struct {
	Risk        risk.Config
	Quote       *quote.Client
	Signer      *signer.Resolver
	Builder     TxBuilder
	Submitter   TxSubmitter
	Repo        repository.Repository
	Observer    Observer
	Closer      Closer
	Validator   *engine.Validator
	RetryPolicy RetryPolicy
	Now         func() time.Time
}

// Result is the outcome of ExecuteTrade.
type Result struct {
	Blocked  bool
	Reason   risk.Reason
	Detail   risk.Detail
	Rejected string
	ErrClass SubmitClass
	TxHash   string
	Err      error
}

// Executor runs the trade hot path.
type Executor struct {
	cfg Config
}

// New builds an Executor.
func New(cfg Config) *Executor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{cfg: cfg}
}

// ExecuteTrade implements spec §4.9's executeTrade(userCtx, tradeParams,
// cfg) algorithm.
func (e *Executor) ExecuteTrade(ctx context.Context, intent engine.TradeIntent, req quote.Request) Result {
	start := e.cfg.Now()
	labels := map[string]string{"strategy": intent.Strategy}

	// 1. Gate.
	gateResult := risk.Passes(ctx, intent.Mint, e.cfg.Risk)
	if !gateResult.OK {
		return Result{Blocked: true, Reason: gateResult.Reason, Detail: gateResult.Detail}
	}

	// 2. Quote.
	quoteStart := e.cfg.Now()
	qr := e.cfg.Quote.GetSafeQuote(ctx, req)
	e.observeStage(StageQuote, quoteStart, labels)
	if !qr.OK {
		return Result{Blocked: true, Rejected: string(qr.Reason)}
	}

	// 3. Sizing.
	sized := intent
	if e.cfg.Validator != nil {
		if err := e.cfg.Validator.Validate(&sized); err != nil {
			return Result{Rejected: "size-too-small", Err: err}
		}
	}

	// 4. Resolve signer.
	s, err := e.cfg.Signer.Resolve(ctx, intent.UserID, intent.WalletID)
	if err != nil {
		return Result{Err: err}
	}
	defer s.Zeroize()

	// 5. Build.
	buildStart := e.cfg.Now()
	tx, err := e.cfg.Builder.Build(ctx, s.PublicKey, qr.Quote)
	e.observeStage(StageBuild, buildStart, labels)
	if err != nil {
		return Result{Err: fmt.Errorf("build: %w", err)}
	}

	// 6. Sign.
	signStart := e.cfg.Now()
	if err := s.SignTransaction(tx); err != nil {
		e.observeStage(StageSign, signStart, labels)
		return Result{Err: fmt.Errorf("sign: %w", err)}
	}
	e.observeStage(StageSign, signStart, labels)

	// 7. Idempotent submit.
	intentHash := IntentHash(intent.UserID, intent.Mint, req)
	submitResult := e.submitIdempotent(ctx, intent, intentHash, tx, labels)

	e.cfg.Observer.Increment("submit_result_total", 1, map[string]string{
		"errorClass": string(submitResult.ErrClass),
		"strategy":   intent.Strategy,
	})
	e.observeStage(StageTotal, start, labels)

	// 9. FIFO close on a successful sell.
	if submitResult.ErrClass == ClassNone && intent.Side == engine.Sell && e.cfg.Closer != nil {
		// ExitPrice is the quote's own output/input ratio; no USD price
		// oracle is wired into the hot path, and Decimals is read by the
		// closer off each stored row rather than the input, so neither
		// ExitPriceUSD nor Decimals has a source here.
		exitPrice := decimal.Zero
		if qr.Quote.InAmount.IsPositive() {
			exitPrice = qr.Quote.OutAmount.Div(qr.Quote.InAmount)
		}
		_ = e.cfg.Closer.Close(ctx, CloseInput{
			UserID:     intent.UserID,
			WalletID:   intent.WalletID,
			Mint:       intent.Mint,
			Strategy:   intent.Strategy,
			AmountSold: sized.AmountIn,
			ExitPrice:  exitPrice,
			TxHash:     submitResult.TxHash,
		})
	}

	return submitResult
}

func (e *Executor) observeStage(stage string, since time.Time, labels map[string]string) {
	withStage := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		withStage[k] = v
	}
	withStage["stage"] = stage
	e.cfg.Observer.Observe("hotpath_ms", float64(e.cfg.Now().Sub(since).Milliseconds()), withStage)
}

// submitIdempotent implements spec §4.9 step 7: read-through the
// idempotency store before ever submitting, retry only NET classes up
// to cfg.RetryPolicy.Max, and record the txHash under the token. The
// record is a separate store write made after a successful submit: the
// submit and the write are not one atomic step, and a failed write is
// ignored.
func (e *Executor) submitIdempotent(ctx context.Context, intent engine.TradeIntent, intentHash string, tx *solana.Transaction, labels map[string]string) Result {
	key := fmt.Sprintf("%s:%s:%s", intent.UserID, intent.Mint, intentHash)

	if prior, ok, err := e.cfg.Repo.Idempotency.Get(ctx, key); err == nil && ok {
		return Result{TxHash: prior, ErrClass: ClassNone}
	}

	var lastErr error
	attempts := e.cfg.RetryPolicy.Max
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		submitStart := e.cfg.Now()
		txHash, err := e.cfg.Submitter.Submit(ctx, tx)
		e.observeStage(StageSubmit, submitStart, labels)

		class := classifySubmitError(err)
		if class == ClassNone {
			_ = e.cfg.Repo.Idempotency.Set(ctx, key, txHash, 24*time.Hour)
			return Result{TxHash: txHash, ErrClass: ClassNone}
		}
		lastErr = err
		if class != ClassNet {
			return Result{Err: err, ErrClass: class}
		}
	}
	return Result{Err: lastErr, ErrClass: ClassNet}
}

// IntentHash derives the idempotency key's hash component, grounded on
// the teacher's struct-hash-then-Keccak256 pattern for deriving a
// stable intent fingerprint from its fields.
func IntentHash(userID, mint string, req quote.Request) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d", userID, mint, req.InputMint, req.OutputMint, req.Amount.String(), req.SlippageBps)
	sum := crypto.Keccak256([]byte(data))
	return fmt.Sprintf("%x", sum)
}
