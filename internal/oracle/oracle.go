// Package oracle ingests market data for the tokens the Risk Gate and
// executor hot path need (pump/volume overview, holder concentration,
// LP burn percentage, insider flags) and caches the latest snapshot per
// mint so those components never block on a live network call.
//
// Providers poll their upstream APIs on a fixed interval and push
// Updates into a Hub, which fans them out to subscribers and keeps a
// Cache the risk.Config callbacks read from directly.
package oracle

import "time"

// Snapshot is the latest known market data for a single mint.
type Snapshot struct {
	Mint           string
	PumpPercent    float64
	VolumeUSD      float64
	HolderPercent  float64
	LPBurnPercent  float64
	InsiderFlagged bool
	UpdatedAt      time.Time
}

// Update is what a Provider pushes to the Hub for a single mint. Apply
// mutates the cached Snapshot in place, and any field it does not assign
// keeps its cached value, so different providers can own different parts
// of the same mint's Snapshot. (OverviewFetch's Apply assigns all five
// market-data fields.)
type Update struct {
	Mint   string
	Apply  func(*Snapshot)
	Source string
}

// Stale reports whether a snapshot is older than maxAge, the guard the
// risk callbacks use before trusting cached data (spec §4.7 treats an
// unreachable provider as a soft-fail, not as stale-data success).
func (s Snapshot) Stale(maxAge time.Duration, now time.Time) bool {
	if s.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(s.UpdatedAt) > maxAge
}
