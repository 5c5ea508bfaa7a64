package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
)

// DispatchCall is one call seen by a RecordingTransport.
type DispatchCall struct {
	Request *fetch.Request
	Options *fetch.Options
}

// RecordingTransport is a fetch.Transport that records every dispatch and
// answers with a fixed response or error.
type RecordingTransport struct {
	mu    sync.Mutex
	calls []DispatchCall

	// Err, when set, is returned by every dispatch.
	Err error

	// StatusCode of the synthesized response (default 200).
	StatusCode int

	// Log, when set, receives a "transport" entry per dispatch.
	Log *CallLog
}

// NewRecordingTransport returns a transport that always succeeds.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{StatusCode: http.StatusOK}
}

// NewFailingTransport returns a transport that always fails with err.
func NewFailingTransport(err error) *RecordingTransport {
	return &RecordingTransport{Err: err}
}

// Dispatch implements fetch.Transport.
func (t *RecordingTransport) Dispatch(ctx context.Context, req *fetch.Request, opts *fetch.Options) (*http.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, DispatchCall{Request: req, Options: opts})
	t.mu.Unlock()

	if t.Log != nil {
		t.Log.Add("transport")
	}
	if t.Err != nil {
		return nil, t.Err
	}

	status := t.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(req.URL)),
	}, nil
}

// Calls returns a copy of the recorded dispatch calls.
func (t *RecordingTransport) Calls() []DispatchCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DispatchCall(nil), t.calls...)
}

// CallCount returns the number of dispatches.
func (t *RecordingTransport) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// CallLog records an ordered sequence of events across plugins and transports.
type CallLog struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (l *CallLog) Add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events.
func (l *CallLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Count returns how many times event was recorded.
func (l *CallLog) Count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e == event {
			n++
		}
	}
	return n
}

// HookCall is the context a RecordingPlugin hook was invoked with.
type HookCall struct {
	OriginalURL string
	URL         string
	Err         error
}

// RecordingPlugin implements both hooks, logging "<name>:<hook>" to Log.
type RecordingPlugin struct {
	PluginName string
	Log        *CallLog

	// RewriteTo, when set, is the URL returned by RequestWillFetch.
	RewriteTo string

	// WillFetchErr and DidFailErr are returned by the respective hooks.
	WillFetchErr error
	DidFailErr   error

	mu        sync.Mutex
	willFetch []HookCall
	didFail   []HookCall
}

// Name implements fetch.Namer.
func (p *RecordingPlugin) Name() string {
	return p.PluginName
}

// RequestWillFetch implements fetch.RequestWillFetcher.
func (p *RecordingPlugin) RequestWillFetch(ctx context.Context, hc *fetch.HookContext) (*fetch.Request, error) {
	p.mu.Lock()
	p.willFetch = append(p.willFetch, HookCall{OriginalURL: hc.OriginalRequest.URL, URL: hc.Request.URL})
	p.mu.Unlock()
	if p.Log != nil {
		p.Log.Add(p.PluginName + ":requestWillFetch")
	}

	if p.WillFetchErr != nil {
		return nil, p.WillFetchErr
	}
	if p.RewriteTo == "" {
		return nil, nil
	}
	return hc.Request.WithURL(p.RewriteTo), nil
}

// FetchDidFail implements fetch.FetchDidFailer.
func (p *RecordingPlugin) FetchDidFail(ctx context.Context, hc *fetch.HookContext) error {
	p.mu.Lock()
	p.didFail = append(p.didFail, HookCall{OriginalURL: hc.OriginalRequest.URL, URL: hc.Request.URL, Err: hc.Error})
	p.mu.Unlock()
	if p.Log != nil {
		p.Log.Add(p.PluginName + ":fetchDidFail")
	}
	return p.DidFailErr
}

// WillFetchCalls returns the recorded RequestWillFetch invocations.
func (p *RecordingPlugin) WillFetchCalls() []HookCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]HookCall(nil), p.willFetch...)
}

// DidFailCalls returns the recorded FetchDidFail invocations.
func (p *RecordingPlugin) DidFailCalls() []HookCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]HookCall(nil), p.didFail...)
}
