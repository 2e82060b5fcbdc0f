package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateHappyPath(t *testing.T) {
	req := Request{InputMint: "mintA", OutputMint: "mintB", MaxImpactPct: 5.0}
	raw := rawQuote{InputMint: "mintA", OutputMint: "mintB", InAmount: "1000", OutAmount: "2000", PriceImpactPct: "1.5"}

	res := validate(raw, req)
	if !res.OK {
		t.Fatalf("expected ok, got reason=%q", res.Reason)
	}
	if !res.Quote.OutAmount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected outAmount: %s", res.Quote.OutAmount)
	}
}

func TestValidateRejectsMintMismatch(t *testing.T) {
	req := Request{InputMint: "mintA", OutputMint: "mintB", MaxImpactPct: 5.0}
	raw := rawQuote{InputMint: "mintA", OutputMint: "mintC", InAmount: "1000", OutAmount: "2000", PriceImpactPct: "1.5"}

	res := validate(raw, req)
	if res.OK || res.Reason != ReasonQuoteShape {
		t.Fatalf("expected quote-shape, got %+v", res)
	}
}

func TestValidateRejectsZeroOutAmount(t *testing.T) {
	req := Request{InputMint: "mintA", OutputMint: "mintB", MaxImpactPct: 5.0}
	raw := rawQuote{InputMint: "mintA", OutputMint: "mintB", InAmount: "1000", OutAmount: "0", PriceImpactPct: "1.5"}

	res := validate(raw, req)
	if res.OK || res.Reason != ReasonQuoteShape {
		t.Fatalf("expected quote-shape, got %+v", res)
	}
}

func TestValidateRejectsNonFiniteImpact(t *testing.T) {
	req := Request{InputMint: "mintA", OutputMint: "mintB", MaxImpactPct: 5.0}
	raw := rawQuote{InputMint: "mintA", OutputMint: "mintB", InAmount: "1000", OutAmount: "2000", PriceImpactPct: "not-a-number"}

	res := validate(raw, req)
	if res.OK || res.Reason != ReasonQuoteShape {
		t.Fatalf("expected quote-shape, got %+v", res)
	}
}

func TestValidateRejectsImpactTooHigh(t *testing.T) {
	req := Request{InputMint: "mintA", OutputMint: "mintB", MaxImpactPct: 5.0}
	raw := rawQuote{InputMint: "mintA", OutputMint: "mintB", InAmount: "1000", OutAmount: "2000", PriceImpactPct: "10.0"}

	res := validate(raw, req)
	if res.OK || res.Reason != ReasonImpactTooHigh {
		t.Fatalf("expected impact-too-high, got %+v", res)
	}
}

func TestGetSafeQuoteOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("inputMint") != "mintA" {
			t.Fatalf("expected inputMint query param, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rawQuote{
			InputMint: "mintA", OutputMint: "mintB",
			InAmount: "1000", OutAmount: "2000", PriceImpactPct: "1.0",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	res := c.GetSafeQuote(context.Background(), Request{
		InputMint: "mintA", OutputMint: "mintB", Amount: decimal.NewFromInt(1000), MaxImpactPct: 5.0,
	})
	if !res.OK {
		t.Fatalf("expected ok, got reason=%q", res.Reason)
	}
}

func TestGetSafeQuoteNon200YieldsNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	res := c.GetSafeQuote(context.Background(), Request{
		InputMint: "mintA", OutputMint: "mintB", Amount: decimal.NewFromInt(1000), MaxImpactPct: 5.0,
	})
	if res.OK || res.Reason != ReasonNoRoute {
		t.Fatalf("expected no-route, got %+v", res)
	}
}
