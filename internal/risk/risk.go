// Package risk implements the Risk Gate (spec §4.6): a pure policy check
// that decides whether a mint is safe to trade against holder
// concentration, LP-burn, and insider heuristics, with a stable
// reason/detail string contract (spec §8) and soft-fail semantics for
// upstream provider errors.
package risk

import (
	"context"
)

// Reason is the stable top-level rejection reason (spec §8's public
// contract). Values are never renamed once shipped.
type Reason string

const (
	ReasonOverviewFail Reason = "overview-fail"
	ReasonPumpTooLow    Reason = "pump-too-low"
	ReasonVolumeTooLow  Reason = "volume-too-low"
	ReasonDevFail       Reason = "dev-fail"
)

// Detail refines ReasonDevFail with which heuristic tripped.
type Detail string

const (
	DetailBlacklist         Detail = "blacklist"
	DetailHolderConcentration Detail = "holder-concentration"
	DetailLPBurnLow         Detail = "lp-burn-low"
	DetailInsider           Detail = "insider"
)

// Overview is the market data a mint is evaluated against (spec §4.6
// step 2's "entry/volume/dip thresholds").
type Overview struct {
	PumpPercent   float64
	VolumeUSD     float64
	HolderPercent float64 // largest-holder concentration, 0-100
	LPBurnPercent float64 // 0-100
}

// Config bundles the thresholds and provider hooks the gate consults.
// fetchOverview/holderConcentration/lpBurnPercent/insiderFlagged follow
// spec §4.6's `cfg.*` callback contract: any of them may return an error,
// which soft-fails (does not block the trade) except for fetchOverview,
// whose failure is itself the ReasonOverviewFail case.
type Config struct {
	MaxHolderPercent float64
	MinLPBurnPercent float64
	EnableInsider    bool
	MinPumpPercent   float64
	MinVolumeUSD     float64

	Blacklist map[string]bool
	Whitelist map[string]bool

	FetchOverview         func(ctx context.Context, mint string) (*Overview, error)
	HolderConcentration   func(ctx context.Context, mint string) (float64, error)
	LPBurnPercent         func(ctx context.Context, mint string) (float64, error)
	InsiderFlagged        func(ctx context.Context, mint string) (bool, error)
}

// Result is the outcome of Passes.
type Result struct {
	OK       bool
	Reason   Reason
	Detail   Detail
	Overview *Overview
}

// Passes implements spec §4.6's passes(mint, cfg) algorithm.
func Passes(ctx context.Context, mint string, cfg Config) Result {
	overview, err := cfg.FetchOverview(ctx, mint)
	if err != nil || overview == nil {
		return Result{OK: false, Reason: ReasonOverviewFail}
	}

	if cfg.MinPumpPercent > 0 && overview.PumpPercent < cfg.MinPumpPercent {
		return Result{OK: false, Reason: ReasonPumpTooLow, Overview: overview}
	}
	if cfg.MinVolumeUSD > 0 && overview.VolumeUSD < cfg.MinVolumeUSD {
		return Result{OK: false, Reason: ReasonVolumeTooLow, Overview: overview}
	}

	if cfg.Blacklist[mint] {
		return Result{OK: false, Reason: ReasonDevFail, Detail: DetailBlacklist, Overview: overview}
	}
	if cfg.Whitelist[mint] {
		return Result{OK: true, Overview: overview}
	}

	if res, ok := checkHolderConcentration(ctx, mint, cfg); !ok {
		return res
	}
	if res, ok := checkLPBurn(ctx, mint, cfg); !ok {
		return res
	}
	if res, ok := checkInsider(ctx, mint, cfg, overview); !ok {
		return res
	}

	return Result{OK: true, Overview: overview}
}

// checkHolderConcentration soft-fails (treats provider errors as a pass)
// per spec §4.6 step 5.
func checkHolderConcentration(ctx context.Context, mint string, cfg Config) (Result, bool) {
	if cfg.HolderConcentration == nil {
		return Result{}, true
	}
	pct, err := cfg.HolderConcentration(ctx, mint)
	if err != nil {
		return Result{}, true
	}
	if pct > cfg.MaxHolderPercent {
		return Result{OK: false, Reason: ReasonDevFail, Detail: DetailHolderConcentration}, false
	}
	return Result{}, true
}

// checkLPBurn soft-fails on provider errors per spec §4.6 step 6.
func checkLPBurn(ctx context.Context, mint string, cfg Config) (Result, bool) {
	if cfg.LPBurnPercent == nil {
		return Result{}, true
	}
	pct, err := cfg.LPBurnPercent(ctx, mint)
	if err != nil {
		return Result{}, true
	}
	if pct < cfg.MinLPBurnPercent {
		return Result{OK: false, Reason: ReasonDevFail, Detail: DetailLPBurnLow}, false
	}
	return Result{}, true
}

// checkInsider soft-fails on provider errors per spec §4.6 step 7, and is
// skipped entirely when disabled.
func checkInsider(ctx context.Context, mint string, cfg Config, overview *Overview) (Result, bool) {
	if !cfg.EnableInsider || cfg.InsiderFlagged == nil {
		return Result{}, true
	}
	flagged, err := cfg.InsiderFlagged(ctx, mint)
	if err != nil {
		return Result{}, true
	}
	if flagged {
		return Result{OK: false, Reason: ReasonDevFail, Detail: DetailInsider, Overview: overview}, false
	}
	return Result{}, true
}
