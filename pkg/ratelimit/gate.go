package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/rs/zerolog"
)

// ErrBlocked is returned by the gate when the rate limit is critical.
var ErrBlocked = errors.New("rate limit critical")

// DefaultThrottleDelay is how long the gate holds a request back when the
// budget is low but not exhausted.
const DefaultThrottleDelay = time.Second

// StateSource provides the current rate limit state.
type StateSource interface {
	GetState(ctx context.Context) (*State, error)
}

// Gate is a requestWillFetch plugin that refuses to let a request through
// while the shared rate limit is critical.
type Gate struct {
	source        StateSource
	throttleDelay time.Duration
	logger        zerolog.Logger
}

// NewGate creates a Gate. A zero throttleDelay uses DefaultThrottleDelay.
func NewGate(source StateSource, throttleDelay time.Duration, logger zerolog.Logger) *Gate {
	if throttleDelay <= 0 {
		throttleDelay = DefaultThrottleDelay
	}
	return &Gate{
		source:        source,
		throttleDelay: throttleDelay,
		logger:        logger,
	}
}

// Name implements fetch.Namer.
func (g *Gate) Name() string {
	return "rate-limit-gate"
}

// RequestWillFetch implements fetch.RequestWillFetcher. It never rewrites the
// request; a non-nil error means the request must not be sent.
func (g *Gate) RequestWillFetch(ctx context.Context, hc *fetch.HookContext) (*fetch.Request, error) {
	state, err := g.source.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		rateLimitBlocksTotal.Inc()
		g.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Str("url", hc.Request.URL).
			Msg("Rate limit critical - blocking request")
		return nil, fmt.Errorf("%w: %d remaining, resets in %s",
			ErrBlocked, state.Remaining, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottling() {
		rateLimitThrottlesTotal.Inc()
		g.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", g.throttleDelay).
			Msg("Rate limit warning - throttling request")

		timer := time.NewTimer(g.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, nil
}
