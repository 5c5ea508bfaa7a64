package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Transport performs the actual network call. It is given the final request
// and, for URL inputs, the caller's options unchanged (nil otherwise).
type Transport interface {
	Dispatch(ctx context.Context, req *Request, opts *Options) (*http.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request, opts *Options) (*http.Response, error)

// Dispatch calls f.
func (f TransportFunc) Dispatch(ctx context.Context, req *Request, opts *Options) (*http.Response, error) {
	return f(ctx, req, opts)
}

// ErrRedirect is returned by HTTPTransport when the options ask for
// Redirect "error" and the server redirects.
var ErrRedirect = errors.New("redirect not allowed")

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	// Client is the underlying HTTP client (default: a client with a 30s timeout).
	Client *http.Client

	// BaseURL resolves relative request URLs, e.g. "/a".
	BaseURL string
}

// HTTPTransport dispatches requests with net/http.
type HTTPTransport struct {
	client  *http.Client
	baseURL *url.URL
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(cfg HTTPTransportConfig) (*HTTPTransport, error) {
	t := &HTTPTransport{client: cfg.Client}
	if t.client == nil {
		t.client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		t.baseURL = base
	}

	return t, nil
}

// Dispatch implements Transport. Response status codes are not inspected;
// only transport-level failures are returned as errors.
func (t *HTTPTransport) Dispatch(ctx context.Context, req *Request, opts *Options) (*http.Response, error) {
	target, err := t.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = http.Header{}
	}

	client := t.client
	if opts != nil {
		if opts.Credentials == CredentialsOmit {
			httpReq.Header.Del("Authorization")
			httpReq.Header.Del("Cookie")
		}
		client = t.clientFor(opts.Redirect)
	}

	return client.Do(httpReq)
}

func (t *HTTPTransport) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if u.IsAbs() || t.baseURL == nil {
		return u.String(), nil
	}
	return t.baseURL.ResolveReference(u).String(), nil
}

// clientFor returns a shallow copy of the client with a redirect policy
// matching mode.
func (t *HTTPTransport) clientFor(mode string) *http.Client {
	switch mode {
	case RedirectError:
		c := *t.client
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return ErrRedirect
		}
		return &c
	case RedirectManual:
		c := *t.client
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return &c
	default:
		return t.client
	}
}
