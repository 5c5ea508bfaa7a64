package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/logging"
	"github.com/rs/zerolog"
)

// Fetcher runs one request through the plugin chain and the transport.
// It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	transport Transport
	logger    zerolog.Logger
}

// Config holds the Fetcher configuration.
type Config struct {
	// Transport performs the network call (REQUIRED).
	Transport Transport

	// Logger overrides the default component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration dispatching over net/http, resolving
// relative URLs against baseURL.
func DefaultConfig(baseURL string) (Config, error) {
	transport, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: baseURL})
	if err != nil {
		return Config{}, err
	}
	return Config{Transport: transport}, nil
}

// New creates a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}

	logger := logging.NewLogger("fetch")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Fetcher{
		transport: cfg.Transport,
		logger:    logger,
	}, nil
}

// Fetch builds the request from input (and opts, for URL inputs), lets every
// requestWillFetch hook rewrite it in plugin order, and dispatches it exactly
// once.
//
// If a requestWillFetch hook fails, nothing is dispatched and an *Error of
// kind KindPluginRequestWillFetch is returned. If the dispatch fails, every
// fetchDidFail hook runs in plugin order and the dispatch error is returned
// unchanged, unless a hook itself fails, in which case that error is returned
// and the remaining hooks are skipped.
func (f *Fetcher) Fetch(ctx context.Context, input Input, opts *Options, plugins ...Plugin) (*http.Response, error) {
	req, err := buildRequest(input, opts)
	if err != nil {
		fetchInvalidRequestsTotal.Inc()
		f.logger.Warn().Err(err).Msg("Invalid fetch input")
		return nil, &Error{
			Kind:    KindInvalidRequest,
			Details: Details{ThrownError: err},
		}
	}

	// Options only travel with URL inputs.
	if _, ok := input.(*Request); ok {
		opts = nil
	}

	original := req.Clone()

	req, err = f.applyRequestWillFetch(ctx, original, req, plugins)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("url", req.URL).
		Str("method", req.Method).
		Msg("Dispatching request")

	start := time.Now()
	resp, dispatchErr := f.transport.Dispatch(ctx, req.Clone(), opts)
	fetchDispatchDuration.Observe(time.Since(start).Seconds())

	if dispatchErr == nil {
		fetchDispatchesTotal.WithLabelValues("success").Inc()
		return resp, nil
	}

	fetchDispatchesTotal.WithLabelValues("failure").Inc()
	f.logger.Warn().
		Err(dispatchErr).
		Str("url", req.URL).
		Str("method", req.Method).
		Msg("Dispatch failed")

	if err := f.applyFetchDidFail(ctx, original, req, dispatchErr, plugins); err != nil {
		return nil, err
	}

	return nil, dispatchErr
}

// applyRequestWillFetch threads req through each requestWillFetch hook and
// returns the final request.
func (f *Fetcher) applyRequestWillFetch(ctx context.Context, original, req *Request, plugins []Plugin) (*Request, error) {
	for _, p := range plugins {
		hook, ok := requestWillFetchHook(p)
		if !ok {
			continue
		}

		fetchHookInvocationsTotal.WithLabelValues(hookRequestWillFetch).Inc()
		next, err := callRequestWillFetch(ctx, hook, &HookContext{
			OriginalRequest: original.Clone(),
			Request:         req.Clone(),
		})
		if err != nil {
			name := pluginName(p)
			fetchPluginErrorsTotal.WithLabelValues(hookRequestWillFetch).Inc()
			f.logger.Warn().
				Err(err).
				Str("plugin", name).
				Str("hook", hookRequestWillFetch).
				Msg("Plugin failed, request not dispatched")
			return nil, &Error{
				Kind: KindPluginRequestWillFetch,
				Details: Details{
					ThrownError: err,
					PluginName:  name,
				},
			}
		}

		if next != nil {
			req = next.Clone()
		}
	}
	return req, nil
}

// callRequestWillFetch invokes hook, turning a panic into an error.
func callRequestWillFetch(ctx context.Context, hook func(context.Context, *HookContext) (*Request, error), hc *HookContext) (req *Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			req = nil
			err = &PanicError{Value: r}
		}
	}()
	return hook(ctx, hc)
}

// applyFetchDidFail runs each fetchDidFail hook in order, stopping at the
// first one that returns an error.
func (f *Fetcher) applyFetchDidFail(ctx context.Context, original, req *Request, dispatchErr error, plugins []Plugin) error {
	for _, p := range plugins {
		hook, ok := fetchDidFailHook(p)
		if !ok {
			continue
		}

		fetchHookInvocationsTotal.WithLabelValues(hookFetchDidFail).Inc()
		err := hook(ctx, &HookContext{
			OriginalRequest: original.Clone(),
			Request:         req.Clone(),
			Error:           dispatchErr,
		})
		if err != nil {
			fetchPluginErrorsTotal.WithLabelValues(hookFetchDidFail).Inc()
			f.logger.Warn().
				Err(err).
				Str("plugin", pluginName(p)).
				Str("hook", hookFetchDidFail).
				Msg("Failure hook failed")
			return err
		}
	}
	return nil
}
