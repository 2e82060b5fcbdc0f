package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/caesar-terminal/caesar/internal/risk"
)

// ErrStale is returned by the risk.Config callbacks below when the
// cached Snapshot for a mint is older than maxAge or has never been
// populated. The Risk Gate treats this the same as any other provider
// error — a soft-fail for the per-check callbacks, a hard-fail for
// FetchOverview (spec §4.7).
type ErrStale struct {
	Mint string
}

func (e ErrStale) Error() string {
	return fmt.Sprintf("oracle: no fresh data for mint %s", e.Mint)
}

// RiskCallbacks builds a risk.Config's provider callbacks from a Hub's
// cached Snapshots, so the Risk Gate never makes a live network call on
// its hot path — it only ever reads whatever the Pollers last wrote.
type RiskCallbacks struct {
	hub    *Hub
	maxAge time.Duration
}

// NewRiskCallbacks wires a Hub into the risk.Config shape. maxAge is how
// old a cached Snapshot may be before it's treated as stale.
func NewRiskCallbacks(hub *Hub, maxAge time.Duration) *RiskCallbacks {
	return &RiskCallbacks{hub: hub, maxAge: maxAge}
}

func (c *RiskCallbacks) lookup(mint string) (Snapshot, error) {
	s, ok := c.hub.Latest(mint)
	if !ok || s.Stale(c.maxAge, time.Now()) {
		return Snapshot{}, ErrStale{Mint: mint}
	}
	return s, nil
}

// FetchOverview implements risk.Config.FetchOverview.
func (c *RiskCallbacks) FetchOverview(_ context.Context, mint string) (*risk.Overview, error) {
	s, err := c.lookup(mint)
	if err != nil {
		return nil, err
	}
	return &risk.Overview{
		PumpPercent:   s.PumpPercent,
		VolumeUSD:     s.VolumeUSD,
		HolderPercent: s.HolderPercent,
		LPBurnPercent: s.LPBurnPercent,
	}, nil
}

// HolderConcentration implements risk.Config.HolderConcentration.
func (c *RiskCallbacks) HolderConcentration(_ context.Context, mint string) (float64, error) {
	s, err := c.lookup(mint)
	if err != nil {
		return 0, err
	}
	return s.HolderPercent, nil
}

// LPBurnPercent implements risk.Config.LPBurnPercent.
func (c *RiskCallbacks) LPBurnPercent(_ context.Context, mint string) (float64, error) {
	s, err := c.lookup(mint)
	if err != nil {
		return 0, err
	}
	return s.LPBurnPercent, nil
}

// InsiderFlagged implements risk.Config.InsiderFlagged.
func (c *RiskCallbacks) InsiderFlagged(_ context.Context, mint string) (bool, error) {
	s, err := c.lookup(mint)
	if err != nil {
		return false, err
	}
	return s.InsiderFlagged, nil
}
