package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] fails or
// has an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// Kind labels the provider class ("stt", "tts", "llm") in log output.
	// Default: "provider".
	Kind string

	// CircuitBreaker is the per-backend breaker configuration. Name and
	// OnStateChange are set by the group for each backend.
	CircuitBreaker CircuitBreakerConfig
}

// backend pairs a provider instance with its dedicated circuit breaker.
type backend[T any] struct {
	name     string
	provider T
	breaker  *CircuitBreaker
}

// FallbackGroup chains a primary and zero or more fallback instances of the
// same provider type. When the primary fails (or its circuit breaker is open),
// the next healthy backend is tried in registration order. Breaker state
// changes are logged with the group's provider kind so a degraded speech or
// language backend shows up in the logs as soon as it trips.
//
// Backends must be registered before the group serves traffic; Execute is
// safe for concurrent use once wiring is done.
type FallbackGroup[T any] struct {
	kind     string
	cbCfg    CircuitBreakerConfig
	backends []backend[T]
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first
// backend. Additional backends are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Kind == "" {
		cfg.Kind = "provider"
	}
	fg := &FallbackGroup[T]{
		kind:  cfg.Kind,
		cbCfg: cfg.CircuitBreaker,
	}
	fg.register(primaryName, primary)
	return fg
}

// AddFallback appends a fallback backend. Fallbacks are tried in the order
// they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.register(name, fallback)
}

func (fg *FallbackGroup[T]) register(name string, provider T) {
	cbCfg := fg.cbCfg
	cbCfg.Name = name
	cbCfg.OnStateChange = func(name string, _, to State) {
		switch to {
		case StateOpen:
			slog.Warn("provider degraded, circuit open",
				"kind", fg.kind, "provider", name)
		case StateClosed:
			slog.Info("provider recovered, circuit closed",
				"kind", fg.kind, "provider", name)
		}
	}
	fg.backends = append(fg.backends, backend[T]{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the first registered backend.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.backends[0].provider
}

// Degraded returns the names of backends whose circuit breakers are currently
// open. An empty slice means the whole chain is healthy.
func (fg *FallbackGroup[T]) Degraded() []string {
	var names []string
	for i := range fg.backends {
		if fg.backends[i].breaker.State() == StateOpen {
			names = append(names, fg.backends[i].name)
		}
	}
	return names
}

// Execute tries fn against each backend in order until one succeeds.
// Open-breaker backends are skipped. Returns [ErrAllFailed] wrapped with the
// last error if every backend fails.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(p T) (struct{}, error) {
		return struct{}{}, fn(p)
	})
	return err
}

// ExecuteWithResult tries fn against each backend in the group until one
// succeeds, returning the result of the first successful call. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.backends {
		b := &fg.backends[i]
		var result R
		err := b.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(b.provider)
			return callErr
		})
		if err == nil {
			if i > 0 {
				slog.Info("fallback provider served request",
					"kind", fg.kind, "provider", b.name)
			}
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open",
				"kind", fg.kind, "provider", b.name)
		} else {
			slog.Warn("provider call failed, trying next",
				"kind", fg.kind, "provider", b.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%s: %w: %v", fg.kind, ErrAllFailed, lastErr)
}
