package fetch

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

// Input is what a caller hands to Fetch: either a URL or a pre-built *Request.
type Input interface {
	isInput()
}

// URL is a bare URL or path input. The request is built from it and the
// options passed alongside.
type URL string

func (URL) isInput() {}

// Request describes a pending network request.
//
// A Request is treated as immutable once handed to Fetch. Plugins that want a
// different request return a new value (see WithURL, WithHeader) instead of
// mutating the one they received.
type Request struct {
	// URL is the request target; it may be relative to the transport's base URL.
	URL string `json:"url"`

	// Method is the HTTP method, upper-cased for the standard methods.
	Method string `json:"method"`

	// Header holds the request headers. Keys are canonicalized.
	Header http.Header `json:"header,omitempty"`

	// Body is the optional request payload.
	Body []byte `json:"body,omitempty"`
}

func (*Request) isInput() {}

// Options is the transport-specific configuration bag accepted alongside a
// URL input. It is used to build the request and then forwarded unchanged
// to the transport.
type Options struct {
	Method string
	Header http.Header
	Body   []byte

	// Credentials controls whether credentials are sent: "omit", "same-origin"
	// or "include".
	Credentials string

	// Mode is the request mode, e.g. "cors", "no-cors" or "same-origin".
	Mode string

	// Cache is the cache mode requested from the transport.
	Cache string

	// Redirect is one of "follow" (default), "error" or "manual".
	Redirect string

	Referrer  string
	Integrity string
	Keepalive bool
}

// Credentials modes understood by HTTPTransport.
const (
	CredentialsOmit       = "omit"
	CredentialsSameOrigin = "same-origin"
	CredentialsInclude    = "include"
)

// Redirect modes understood by HTTPTransport.
const (
	RedirectFollow = "follow"
	RedirectError  = "error"
	RedirectManual = "manual"
)

var standardMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPost,
	http.MethodPut,
}

// normalizeMethod upper-cases the standard methods and leaves extension
// methods (e.g. "PATCH" vs "patch") exactly as given.
func normalizeMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}
	for _, m := range standardMethods {
		if strings.EqualFold(method, m) {
			return m
		}
	}
	return method
}

// NewRequest builds a Request from a URL and optional options.
func NewRequest(url string, opts *Options) (*Request, error) {
	if url == "" {
		return nil, fmt.Errorf("request url is empty")
	}

	req := &Request{
		URL:    url,
		Method: http.MethodGet,
		Header: http.Header{},
	}
	if opts == nil {
		return req, nil
	}

	req.Method = normalizeMethod(opts.Method)
	for key, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if len(opts.Body) > 0 {
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			return nil, fmt.Errorf("request with %s method cannot have a body", req.Method)
		}
		req.Body = bytes.Clone(opts.Body)
	}

	return req, nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	return &Request{
		URL:    r.URL,
		Method: r.Method,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
	}
}

// WithURL returns a copy of r targeting url.
func (r *Request) WithURL(url string) *Request {
	c := r.Clone()
	c.URL = url
	return c
}

// WithHeader returns a copy of r with the header key set to value.
func (r *Request) WithHeader(key, value string) *Request {
	c := r.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Header.Set(key, value)
	return c
}

// buildRequest produces the initial request for one Fetch call. Options are
// only consulted for URL inputs.
func buildRequest(input Input, opts *Options) (*Request, error) {
	switch in := input.(type) {
	case URL:
		return NewRequest(string(in), opts)
	case *Request:
		if in == nil {
			return nil, fmt.Errorf("request is nil")
		}
		if in.URL == "" {
			return nil, fmt.Errorf("request url is empty")
		}
		req := in.Clone()
		req.Method = normalizeMethod(req.Method)
		if req.Header == nil {
			req.Header = http.Header{}
		}
		return req, nil
	case nil:
		return nil, fmt.Errorf("input is nil")
	default:
		return nil, fmt.Errorf("unsupported input type %T", input)
	}
}
