// Package metrics implements the Metrics + Redaction sink (spec §4.10):
// observe/increment operations backed by Prometheus, with every label
// value scrubbed of userId, walletId, botId, base58 public keys, and
// hex transaction hashes before it reaches the registry.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink is the observation sink spec §4.10 names: observe(name, value,
// labels) and increment(name, n, labels). It owns its own Prometheus
// registry (grounded on the teacher-adjacent pack's Collector pattern of
// a private *prometheus.Registry rather than the global default one).
type Sink struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	redactCtx  func() (userID, walletID, botID string)
}

// New builds a Sink with an empty private registry. redactCtx is called
// on every observation to obtain the current identifiers to scrub;
// passing nil disables identifier scrubbing (base58/hex scrubbing still
// applies unconditionally).
func New(redactCtx func() (userID, walletID, botID string)) *Sink {
	if redactCtx == nil {
		redactCtx = func() (string, string, string) { return "", "", "" }
	}
	return &Sink{
		registry:   prometheus.NewRegistry(),
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		redactCtx:  redactCtx,
	}
}

// Observe records value against a histogram named name, labeled by the
// label set with each value passed through RedactLabel. The label schema is fixed per metric
// name on first use; subsequent calls with a different label key set
// panic, matching Prometheus's own vector semantics.
func (s *Sink) Observe(name string, value float64, labels map[string]string) {
	h := s.histogramFor(name, labelNames(labels))
	h.With(s.redact(labels)).Observe(value)
}

// Increment adds n to a counter named name, labeled by the label set
// with each value passed through RedactLabel.
func (s *Sink) Increment(name string, n float64, labels map[string]string) {
	c := s.counterFor(name, labelNames(labels))
	c.With(s.redact(labels)).Add(n)
}

func (s *Sink) histogramFor(name string, names []string) *prometheus.HistogramVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histograms[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: name,
			Help: name,
		}, names)
		s.registry.MustRegister(h)
		s.histograms[name] = h
	}
	return h
}

func (s *Sink) counterFor(name string, names []string) *prometheus.CounterVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: name,
		}, names)
		s.registry.MustRegister(c)
		s.counters[name] = c
	}
	return c
}

func (s *Sink) redact(labels map[string]string) prometheus.Labels {
	userID, walletID, botID := s.redactCtx()
	out := make(prometheus.Labels, len(labels))
	for k, v := range labels {
		out[k] = RedactLabel(v, userID, walletID, botID)
	}
	return out
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

// ServeHTTP starts a /metrics HTTP server on addr, blocking until ctx is
// cancelled. Intended to run in its own goroutine from cmd/tradecore.
func (s *Sink) ServeHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
