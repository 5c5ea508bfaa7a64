package ratelimit

import (
	"context"
	"net/http"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/rs/zerolog"
)

// HeaderRecorder records the rate limit advertised in response headers.
type HeaderRecorder interface {
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Transport wraps a fetch.Transport and feeds every response's rate limit
// headers into a recorder. Dispatch results pass through unchanged.
type Transport struct {
	next     fetch.Transport
	recorder HeaderRecorder
	logger   zerolog.Logger
}

// NewTransport decorates next.
func NewTransport(next fetch.Transport, recorder HeaderRecorder, logger zerolog.Logger) *Transport {
	return &Transport{
		next:     next,
		recorder: recorder,
		logger:   logger,
	}
}

// Dispatch implements fetch.Transport.
func (t *Transport) Dispatch(ctx context.Context, req *fetch.Request, opts *fetch.Options) (*http.Response, error) {
	resp, err := t.next.Dispatch(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	if err := t.recorder.UpdateFromHeaders(ctx, resp.Header); err != nil {
		t.logger.Warn().Err(err).Str("url", req.URL).Msg("Failed to update rate limit from headers")
	}
	return resp, nil
}
