package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Provider is anything that pushes Updates for mints it's responsible
// for — a polling HTTP source, a websocket feed, a test fixture.
type Provider interface {
	Updates() <-chan Update
}

// Hub ingests Updates from any number of Providers, applies each to a
// per-mint Snapshot, and serves the latest Snapshot to readers (the
// Risk Gate callbacks). Adapted from the teacher's Broadcaster
// many-sources/fan-out shape, generalized from exchange BookUpdates to
// per-mint Snapshot merging and from distribute-to-subscribers to an
// accumulating cache read by Latest.
type Hub struct {
	log     *slog.Logger
	nowFunc func() time.Time

	mu    sync.RWMutex
	state map[string]Snapshot

	subMu sync.RWMutex
	subs  []chan Update

	sources []<-chan Update
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		nowFunc: time.Now,
		state:   make(map[string]Snapshot),
	}
}

// Register adds a Provider's update channel as a source. Must be
// called before Run.
func (h *Hub) Register(p Provider) {
	h.sources = append(h.sources, p.Updates())
}

// Subscribe returns a buffered channel receiving every Update the Hub
// applies, regardless of mint. Intended for logging or metrics, not for
// the Risk Gate hot path — use Latest for that.
func (h *Hub) Subscribe() <-chan Update {
	ch := make(chan Update, 256)
	h.subMu.Lock()
	h.subs = append(h.subs, ch)
	h.subMu.Unlock()
	return ch
}

// Latest returns the current cached Snapshot for mint, or false if the
// Hub has never seen an Update for it.
func (h *Hub) Latest(mint string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.state[mint]
	return s, ok
}

// Run consumes every registered source and applies Updates until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range h.sources {
		wg.Add(1)
		go func(ch <-chan Update) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case u, ok := <-ch:
					if !ok {
						return
					}
					h.apply(u)
				}
			}
		}(src)
	}
	wg.Wait()
}

func (h *Hub) apply(u Update) {
	h.mu.Lock()
	s := h.state[u.Mint]
	s.Mint = u.Mint
	u.Apply(&s)
	s.UpdatedAt = h.nowFunc()
	h.state[u.Mint] = s
	h.mu.Unlock()

	h.subMu.RLock()
	for _, ch := range h.subs {
		select {
		case ch <- u:
		default:
			h.log.Warn("oracle: dropping update for slow subscriber", "mint", u.Mint, "source", u.Source)
		}
	}
	h.subMu.RUnlock()
}
