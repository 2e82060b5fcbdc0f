package httpclient

import (
	"sync"
	"time"
)

// breakerState is the 3-state circuit breaker machine from spec §4.8,
// generalized from the teacher's 2-state market-staleness breaker
// (internal/adapter/circuit_breaker.go, which only tracked
// healthy/stale per market) into the standard CLOSED/OPEN/HALF_OPEN
// shape needed for outbound-call protection.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerConfig tunes the per-key circuit breaker (spec §4.8).
type BreakerConfig struct {
	FailureThreshold       int
	Cooldown               time.Duration
	HalfOpenSuccessThreshold int
}

// DefaultBreakerConfig returns the spec-mandated defaults: failure
// threshold 3, cooldown 30s, half-open success threshold 1.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, Cooldown: 30 * time.Second, HalfOpenSuccessThreshold: 1}
}

// breaker is a single per-key circuit breaker instance.
type breaker struct {
	mu               sync.Mutex
	cfg              BreakerConfig
	state            breakerState
	failureCount     int
	halfOpenSuccesses int
	nextAttemptAt    time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg, state: stateClosed}
}

// allow reports whether a call is permitted now, transitioning OPEN to
// HALF_OPEN once the cooldown has elapsed (spec §4.8 step 1).
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if now.Before(b.nextAttemptAt) {
			return false
		}
		b.state = stateHalfOpen
		b.halfOpenSuccesses = 0
		return true
	default:
		return true
	}
}

// recordSuccess handles a successful call: in CLOSED it resets the
// failure count; in HALF_OPEN it counts toward the success threshold
// and transitions back to CLOSED once reached (spec §4.8 step 3).
func (b *breaker) recordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.failureCount = 0
	case stateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccessThreshold {
			b.state = stateClosed
			b.failureCount = 0
		}
	}
}

// recordFailure handles a failed call: in HALF_OPEN any failure reopens
// the breaker with a fresh cooldown; in CLOSED it increments the
// failure count and opens once the threshold is reached (spec §4.8
// breaker description).
func (b *breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.open(now)
	case stateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.open(now)
		}
	}
}

// open requires b.mu held.
func (b *breaker) open(now time.Time) {
	b.state = stateOpen
	b.failureCount = 0
	b.nextAttemptAt = now.Add(b.cfg.Cooldown)
}

// breakerRegistry lazily creates one breaker per circuit key.
type breakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*breaker
}

func newBreakerRegistry(cfg BreakerConfig) *breakerRegistry {
	return &breakerRegistry{cfg: cfg, breakers: make(map[string]*breaker)}
}

func (r *breakerRegistry) get(key string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = newBreaker(r.cfg)
		r.breakers[key] = b
	}
	return b
}
