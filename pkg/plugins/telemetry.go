package plugins

import (
	"context"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/rs/zerolog"
)

// Telemetry logs the request lifecycle. It never changes the request.
type Telemetry struct {
	logger zerolog.Logger
}

// NewTelemetry creates a Telemetry plugin writing to logger.
func NewTelemetry(logger zerolog.Logger) *Telemetry {
	return &Telemetry{logger: logger}
}

// Name implements fetch.Namer.
func (t *Telemetry) Name() string {
	return "telemetry"
}

// RequestWillFetch implements fetch.RequestWillFetcher.
func (t *Telemetry) RequestWillFetch(ctx context.Context, hc *fetch.HookContext) (*fetch.Request, error) {
	event := t.logger.Debug().
		Str("url", hc.Request.URL).
		Str("method", hc.Request.Method)
	if hc.Request.URL != hc.OriginalRequest.URL {
		event = event.Str("original_url", hc.OriginalRequest.URL)
	}
	event.Msg("Request will fetch")
	return nil, nil
}

// FetchDidFail implements fetch.FetchDidFailer.
func (t *Telemetry) FetchDidFail(ctx context.Context, hc *fetch.HookContext) error {
	t.logger.Warn().
		Err(hc.Error).
		Str("url", hc.Request.URL).
		Str("original_url", hc.OriginalRequest.URL).
		Str("method", hc.Request.Method).
		Msg("Fetch failed")
	return nil
}
