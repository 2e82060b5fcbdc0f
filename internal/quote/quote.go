// Package quote implements the Quote Service Client (spec §4.7): fetches
// a swap quote from an upstream routing service and validates its shape
// before the Trade Executor is allowed to act on it.
package quote

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Reason is the stable rejection reason contract (spec §4.7/§8).
type Reason string

const (
	ReasonNoRoute       Reason = "no-route"
	ReasonImpactTooHigh Reason = "impact-too-high"
	ReasonQuoteShape    Reason = "quote-shape"
)

// Request bundles the swap parameters spec §4.7 names.
type Request struct {
	InputMint    string
	OutputMint   string
	Amount       decimal.Decimal
	SlippageBps  int
	MaxImpactPct float64
}

// Quote is the validated upstream quote.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       decimal.Decimal
	OutAmount      decimal.Decimal
	PriceImpactPct float64

	// SwapTransaction is the router's base64-encoded unsigned transaction
	// for this route (the same shape Jupiter's /swap endpoint returns
	// alongside a quote). internal/txchain decodes and signs it rather
	// than re-deriving swap instructions from the quote fields.
	SwapTransaction string
}

// Result is the outcome of GetSafeQuote.
type Result struct {
	OK     bool
	Quote  *Quote
	Reason Reason
}

// rawQuote mirrors the upstream JSON response shape before validation.
type rawQuote struct {
	InputMint       string `json:"inputMint"`
	OutputMint      string `json:"outputMint"`
	InAmount        string `json:"inAmount"`
	OutAmount       string `json:"outAmount"`
	PriceImpactPct  string `json:"priceImpactPct"`
	SwapTransaction string `json:"swapTransaction"`
}

// Client fetches and validates quotes from an upstream routing service
// over HTTP, styled on the teacher's resty-based exchange client
// (rate-limited REST client with retry and base URL).
type Client struct {
	http *resty.Client
}

// New builds a Client pointed at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &Client{http: httpClient}
}

// GetSafeQuote implements spec §4.7's getSafeQuote: fetch a quote and
// validate priceImpactPct is finite and within MaxImpactPct, the
// input/output mints match the request, and outAmount > 0.
func (c *Client) GetSafeQuote(ctx context.Context, req Request) Result {
	var raw rawQuote
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   req.InputMint,
			"outputMint":  req.OutputMint,
			"amount":      req.Amount.String(),
			"slippageBps": fmt.Sprintf("%d", req.SlippageBps),
		}).
		SetResult(&raw).
		Get("/quote")
	if err != nil {
		return Result{OK: false, Reason: ReasonNoRoute}
	}
	if resp.StatusCode() != http.StatusOK {
		return Result{OK: false, Reason: ReasonNoRoute}
	}

	return validate(raw, req)
}

func validate(raw rawQuote, req Request) Result {
	if raw.InputMint != req.InputMint || raw.OutputMint != req.OutputMint {
		return Result{OK: false, Reason: ReasonQuoteShape}
	}

	inAmount, err := decimal.NewFromString(raw.InAmount)
	if err != nil {
		return Result{OK: false, Reason: ReasonQuoteShape}
	}
	outAmount, err := decimal.NewFromString(raw.OutAmount)
	if err != nil || !outAmount.IsPositive() {
		return Result{OK: false, Reason: ReasonQuoteShape}
	}

	impact, err := decimal.NewFromString(raw.PriceImpactPct)
	if err != nil {
		return Result{OK: false, Reason: ReasonQuoteShape}
	}
	impactFloat, _ := impact.Float64()
	if math.IsNaN(impactFloat) || math.IsInf(impactFloat, 0) {
		return Result{OK: false, Reason: ReasonQuoteShape}
	}
	if impactFloat > req.MaxImpactPct {
		return Result{OK: false, Reason: ReasonImpactTooHigh}
	}

	return Result{
		OK: true,
		Quote: &Quote{
			InputMint:       raw.InputMint,
			OutputMint:      raw.OutputMint,
			InAmount:        inAmount,
			OutAmount:       outAmount,
			PriceImpactPct:  impactFloat,
			SwapTransaction: raw.SwapTransaction,
		},
	}
}
