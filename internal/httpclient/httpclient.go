// Package httpclient implements the single outbound HTTP call function
// (spec §4.8): every external call in the system funnels through Do,
// which attaches a per-host (or explicit) circuit breaker, retries
// network-class failures with backoff+jitter, and classifies the result
// for metrics.
package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrClass is the stable errClass label from spec §4.8/§4.9.
type ErrClass string

const (
	ErrClassNone    ErrClass = "NONE"
	ErrClassNet     ErrClass = "NET"
	ErrClassUser    ErrClass = "USER"
	ErrClassUnknown ErrClass = "UNKNOWN"
)

// ErrShortCircuited is returned when the breaker for circuitKey is OPEN
// and the cooldown has not yet elapsed.
var ErrShortCircuited = errors.New("httpclient: circuit open, short-circuited")

// Config holds the per-call parameters from spec §4.8. Zero values take
// the documented defaults.
type Config struct {
	URL        string
	Method     string
	Params     map[string]string
	Headers    map[string]string
	Data       any
	Result     any
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	CircuitKey string // default: URL hostname
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.Timeout == 0 {
		c.Timeout = 6 * time.Second
	}
	if c.Retries == 0 {
		c.Retries = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.CircuitKey == "" {
		if u, err := url.Parse(c.URL); err == nil {
			c.CircuitKey = u.Hostname()
		}
	}
	return c
}

// Observation is the metric spec §4.8 step 5 emits per call.
type Observation struct {
	Service    string
	Status     string
	ErrClass   ErrClass
	DurationMs int64
}

// Observer receives one Observation per Do call. Nil is a valid no-op.
type Observer func(Observation)

// Client issues HTTP calls through the circuit-breaker + retry algorithm.
type Client struct {
	http     *resty.Client
	breakers *breakerRegistry
	observe  Observer
	log      *slog.Logger
	nowFunc  func() time.Time
}

// New builds a Client. breakerCfg configures the shared circuit-breaker
// tunables (spec §4.8: failure threshold 3, cooldown 30s, half-open
// success threshold 1, all overridable).
func New(breakerCfg BreakerConfig, observe Observer, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:     resty.New(),
		breakers: newBreakerRegistry(breakerCfg),
		observe:  observe,
		log:      log,
		nowFunc:  time.Now,
	}
}

// Do implements spec §4.8's per-call algorithm.
func (c *Client) Do(ctx context.Context, cfg Config) (*resty.Response, error) {
	cfg = cfg.withDefaults()
	breaker := c.breakers.get(cfg.CircuitKey)

	if !breaker.allow(c.nowFunc()) {
		c.emit(cfg, "SHORT_CIRCUIT", ErrClassNet, 0)
		return nil, ErrShortCircuited
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		start := c.nowFunc()
		resp, err := c.attempt(ctx, cfg)
		duration := c.nowFunc().Sub(start).Milliseconds()

		if err == nil && resp.StatusCode() < 400 {
			breaker.recordSuccess(c.nowFunc())
			c.emit(cfg, statusLabel(resp.StatusCode()), classify(resp.StatusCode(), nil), duration)
			return resp, nil
		}

		class := classify(statusOrZero(resp), err)
		lastErr = err
		if lastErr == nil {
			lastErr = errors.New("httpclient: server error " + statusLabel(resp.StatusCode()))
		}

		if class != ErrClassNet {
			// Non-idempotent / non-network failures with a concrete HTTP
			// response are not retried (spec §4.8 step 4).
			breaker.recordFailure(c.nowFunc())
			c.emit(cfg, statusLabel(statusOrZero(resp)), class, duration)
			return resp, lastErr
		}

		breaker.recordFailure(c.nowFunc())
		c.emit(cfg, statusLabel(statusOrZero(resp)), class, duration)

		if attempt == cfg.Retries {
			break
		}
		sleepBackoff(ctx, cfg.RetryDelay, attempt)
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, cfg Config) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeaders(cfg.Headers).
		SetQueryParams(cfg.Params)
	if cfg.Result != nil {
		req = req.SetResult(cfg.Result)
	}
	if cfg.Data != nil {
		req = req.SetBody(cfg.Data)
	}
	c.http.SetTimeout(cfg.Timeout)

	switch cfg.Method {
	case http.MethodPost:
		return req.Post(cfg.URL)
	case http.MethodPut:
		return req.Put(cfg.URL)
	case http.MethodDelete:
		return req.Delete(cfg.URL)
	case http.MethodPatch:
		return req.Patch(cfg.URL)
	default:
		return req.Get(cfg.URL)
	}
}

func (c *Client) emit(cfg Config, status string, class ErrClass, durationMs int64) {
	if c.observe == nil {
		return
	}
	c.observe(Observation{Service: cfg.CircuitKey, Status: status, ErrClass: class, DurationMs: durationMs})
}

func statusOrZero(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

func statusLabel(status int) string {
	if status == 0 {
		return "err"
	}
	return http.StatusText(status)
}

// classify implements the errClass taxonomy: network-class failures (no
// response, DNS, connection reset/timeout) are NET; HTTP responses are
// USER or UNKNOWN depending on status class; success is NONE.
func classify(status int, err error) ErrClass {
	if err != nil {
		return ErrClassNet
	}
	switch {
	case status == 0:
		return ErrClassUnknown
	case status < 400:
		return ErrClassNone
	case status >= 400 && status < 500:
		return ErrClassUser
	default:
		return ErrClassUnknown
	}
}

// sleepBackoff implements spec §4.8's retryDelay × 2^attempt +
// uniform(0,retryDelay) schedule, grounded on the teacher's WSClient
// reconnect backoff loop (websocket.go).
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	select {
	case <-ctx.Done():
	case <-time.After(delay + jitter):
	}
}
