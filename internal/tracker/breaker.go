package tracker

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
)

// Breaker states.
const (
	stateClosed int32 = iota
	stateOpen
	stateHalfOpen
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the breaker.
	Threshold int
	// Cooldown is the initial open window.
	Cooldown time.Duration
	// MaxCooldown caps the exponential extension.
	MaxCooldown time.Duration
}

// DefaultBreakerConfig is used when fields are unset.
var DefaultBreakerConfig = BreakerConfig{
	Threshold:   5,
	Cooldown:    2 * time.Second,
	MaxCooldown: 2 * time.Minute,
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultBreakerConfig.Threshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultBreakerConfig.Cooldown
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = DefaultBreakerConfig.MaxCooldown
	}
	return c
}

// Breaker isolates one external endpoint. Closed admits all traffic.
// After Threshold consecutive failures it opens: calls short-circuit
// with a classified unavailable error and no network attempt. Once the
// cooldown elapses exactly one probe is admitted (half-open); probe
// success closes the breaker, probe failure re-opens it with the
// cooldown doubled up to MaxCooldown.
type Breaker struct {
	endpoint string
	config   BreakerConfig

	// state transitions happen via compare-and-swap so concurrent
	// callers agree on exactly one probe.
	state atomic.Int32

	mu       sync.Mutex
	failures int
	openedAt time.Time
	cooldown time.Duration
}

// NewBreaker creates a closed breaker for the endpoint.
func NewBreaker(endpoint string, config BreakerConfig) *Breaker {
	config = config.withDefaults()
	return &Breaker{
		endpoint: endpoint,
		config:   config,
		cooldown: config.Cooldown,
	}
}

// Allow reports whether a call may go out. While open within the
// cooldown it returns a circuit-open error. After the cooldown, the
// first caller to win the CAS becomes the half-open probe; everyone
// else keeps short-circuiting until the probe resolves.
func (b *Breaker) Allow() error {
	switch b.state.Load() {
	case stateClosed:
		return nil
	case stateHalfOpen:
		return errors.NewCircuitOpen(b.endpoint)
	default:
		b.mu.Lock()
		expired := time.Since(b.openedAt) >= b.cooldown
		b.mu.Unlock()
		if !expired {
			return errors.NewCircuitOpen(b.endpoint)
		}
		if b.state.CompareAndSwap(stateOpen, stateHalfOpen) {
			log.Printf("[breaker] %s half-open, admitting probe", b.endpoint)
			return nil
		}
		return errors.NewCircuitOpen(b.endpoint)
	}
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.cooldown = b.config.Cooldown
	b.mu.Unlock()
	b.state.Store(stateClosed)
}

// Failure records a failed call. A half-open probe failure re-opens
// with an extended cooldown; in closed state the breaker opens once
// the consecutive-failure threshold is hit.
func (b *Breaker) Failure() {
	if b.state.CompareAndSwap(stateHalfOpen, stateOpen) {
		b.mu.Lock()
		b.cooldown *= 2
		if b.cooldown > b.config.MaxCooldown {
			b.cooldown = b.config.MaxCooldown
		}
		b.openedAt = time.Now()
		b.mu.Unlock()
		log.Printf("[breaker] %s probe failed, open for %s", b.endpoint, b.cooldownLocked())
		return
	}

	b.mu.Lock()
	b.failures++
	trip := b.failures >= b.config.Threshold
	if trip {
		b.openedAt = time.Now()
	}
	b.mu.Unlock()
	if trip && b.state.CompareAndSwap(stateClosed, stateOpen) {
		log.Printf("[breaker] %s open after %d consecutive failures", b.endpoint, b.config.Threshold)
	}
}

func (b *Breaker) cooldownLocked() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cooldown
}

// Open reports whether the breaker is currently rejecting traffic.
func (b *Breaker) Open() bool {
	return b.state.Load() != stateClosed
}

// BreakerRegistry shares breaker state across all creator instances in
// the process, keyed by endpoint.
type BreakerRegistry struct {
	config   BreakerConfig
	breakers sync.Map // endpoint -> *Breaker
}

// NewBreakerRegistry creates a registry whose breakers use config.
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{config: config.withDefaults()}
}

// ForEndpoint returns the shared breaker for an endpoint, creating it
// on first use.
func (r *BreakerRegistry) ForEndpoint(endpoint string) *Breaker {
	if b, ok := r.breakers.Load(endpoint); ok {
		return b.(*Breaker)
	}
	b, _ := r.breakers.LoadOrStore(endpoint, NewBreaker(endpoint, r.config))
	return b.(*Breaker)
}
