package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/caesar-terminal/caesar/internal/httpclient"
)

// Fetch retrieves the fields one provider owns for a single mint. The
// Fetch sets Update.Source itself; the "service" label on each
// httpclient.Observation is the CircuitKey of the call it makes. The
// Poller's own source string appears only in its log lines.
type Fetch func(ctx context.Context, client *httpclient.Client, mint string) (Update, error)

// Poller polls a Fetch function for a fixed set of mints on an interval,
// pushing results to its updates channel. Adapted from the teacher's
// exchange adapters' Run()/Updates() shape (poly.PolyAdapter), but
// driven by a ticker over a REST Fetch instead of a persistent
// websocket subscription — Solana token analytics providers (holder
// concentration, LP burn, insider heuristics) are polled HTTP APIs, not
// streaming feeds.
type Poller struct {
	client   *httpclient.Client
	interval time.Duration
	mints    func() []string
	fetch    Fetch
	source   string
	log      *slog.Logger

	updates chan Update
}

// NewPoller creates a Poller. mints is called on every tick to get the
// current set of mints worth watching (e.g. mints with an open position
// or pending trade), so the watch list can grow and shrink at runtime.
func NewPoller(client *httpclient.Client, interval time.Duration, mints func() []string, fetch Fetch, source string, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		client:   client,
		interval: interval,
		mints:    mints,
		fetch:    fetch,
		source:   source,
		log:      log,
		updates:  make(chan Update, 256),
	}
}

// Updates implements Provider.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Run polls every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, mint := range p.mints() {
		update, err := p.fetch(ctx, p.client, mint)
		if err != nil {
			p.log.Warn("oracle: provider fetch failed", "source", p.source, "mint", mint, "err", err)
			continue
		}
		select {
		case p.updates <- update:
		default:
			p.log.Warn("oracle: updates channel full, dropping", "source", p.source, "mint", mint)
		}
	}
}
