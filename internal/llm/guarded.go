package llm

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/metrics"
)

// BreakerSettings tunes the circuit breaker in Guarded.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// Guarded bounds every call to the wrapped generator with a timeout and stops calling it
// while its circuit breaker is open.
type Guarded struct {
	inner    TextGenerator
	provider string
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker[string]
	logger   *zap.Logger
}

// NewGuarded wraps inner. provider labels metrics and names the breaker.
func NewGuarded(inner TextGenerator, provider string, timeout time.Duration, bs BreakerSettings, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := provider + "-generator"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	minRequests := bs.MinRequests
	failureRatio := bs.FailureRatio
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= failureRatio {
				logger.Warn("opening generator circuit",
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_ratio", ratio))
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("generator circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// a caller giving up is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guarded{
		inner:    inner,
		provider: provider,
		timeout:  timeout,
		cb:       cb,
		logger:   logger,
	}
}

// Generate calls the wrapped generator once.
func (g *Guarded) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.cb.Execute(func() (string, error) {
		return g.inner.Generate(ctx, prompt)
	})
	name := g.cb.Name()
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		metrics.GenerationDuration.WithLabelValues(g.provider).Observe(time.Since(start).Seconds())
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
		metrics.GenerationDuration.WithLabelValues(g.provider).Observe(time.Since(start).Seconds())
	}
	return text, err
}

// State returns the breaker state as "closed", "half-open" or "open".
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
