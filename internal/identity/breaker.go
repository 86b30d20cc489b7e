package identity

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the storage circuit breaker configuration.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive storage failures required to
	// trip the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probe
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes in
	// half-open state required to close the circuit. Default: 2.
	HalfOpenMaxSuccesses uint32
}

func (c *BreakerConfig) applyDefaults() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxSuccesses == 0 {
		c.HalfOpenMaxSuccesses = 2
	}
}

// storageBreaker wraps gobreaker around the identify transaction so a sick
// database sheds load instead of accumulating doomed requests. Validation
// never reaches the breaker, and an invariant violation (ErrNoPrimary) does
// not count as a storage failure.
type storageBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func newStorageBreaker(cfg BreakerConfig) *storageBreaker {
	cfg.applyDefaults()
	return &storageBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "contact-storage",
			MaxRequests: cfg.HalfOpenMaxSuccesses,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoPrimary)
			},
		}),
	}
}

// execute runs fn through the breaker, mapping the open-circuit state to
// ErrCircuitOpen.
func (b *storageBreaker) execute(fn func() (Aggregate, error)) (Aggregate, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Aggregate{}, ErrCircuitOpen
		}
		if agg, ok := result.(Aggregate); ok {
			return agg, err
		}
		return Aggregate{}, err
	}
	return result.(Aggregate), nil
}

// state reports the breaker state as a string for diagnostics.
func (b *storageBreaker) state() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
