package oracle

import (
	"context"
	"fmt"

	"github.com/caesar-terminal/caesar/internal/httpclient"
)

// overviewResponse mirrors a token analytics provider's per-mint
// overview payload (pump/volume/holder-concentration/LP-burn/insider
// fields), the same shape risk.Overview exposes to the Risk Gate.
type overviewResponse struct {
	PumpPercent    float64 `json:"pumpPercent"`
	VolumeUSD      float64 `json:"volumeUsd"`
	HolderPercent  float64 `json:"holderPercent"`
	LPBurnPercent  float64 `json:"lpBurnPercent"`
	InsiderFlagged bool    `json:"insiderFlagged"`
}

// OverviewFetch builds a Fetch that polls baseURL+"/overview/{mint}" for
// the fields risk.Config's FetchOverview/HolderConcentration/
// LPBurnPercent/InsiderFlagged callbacks need, routed through
// httpclient.Client so the breaker and retry policy in spec §4.8 cover
// this provider the same as the quote and chain clients.
func OverviewFetch(baseURL string) Fetch {
	return func(ctx context.Context, client *httpclient.Client, mint string) (Update, error) {
		var raw overviewResponse
		_, err := client.Do(ctx, httpclient.Config{
			URL:        fmt.Sprintf("%s/overview/%s", baseURL, mint),
			CircuitKey: "oracle-overview",
			Result:     &raw,
		})
		if err != nil {
			return Update{}, err
		}

		return Update{
			Mint:   mint,
			Source: "overview",
			Apply: func(s *Snapshot) {
				s.PumpPercent = raw.PumpPercent
				s.VolumeUSD = raw.VolumeUSD
				s.HolderPercent = raw.HolderPercent
				s.LPBurnPercent = raw.LPBurnPercent
				s.InsiderFlagged = raw.InsiderFlagged
			},
		}, nil
	}
}
