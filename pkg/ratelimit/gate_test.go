package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/fetchwrapper/internal/testutil"
	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/rs/zerolog"
)

type staticSource struct {
	state *State
	err   error
}

func (s staticSource) GetState(ctx context.Context) (*State, error) {
	return s.state, s.err
}

func newFetcher(t *testing.T, transport fetch.Transport) *fetch.Fetcher {
	t.Helper()

	logger := zerolog.Nop()
	f, err := fetch.New(fetch.Config{Transport: transport, Logger: &logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func stateWith(remaining int) *State {
	s := &State{
		Remaining:  remaining,
		ResetAt:    time.Now().Add(time.Minute),
		LastUpdate: time.Now(),
	}
	s.UpdateHealth()
	return s
}

func TestGate_Healthy(t *testing.T) {
	transport := testutil.NewRecordingTransport()
	f := newFetcher(t, transport)
	gate := NewGate(staticSource{state: stateWith(100)}, 0, zerolog.Nop())

	resp, err := f.Fetch(context.Background(), fetch.URL("/a"), nil, gate)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if transport.CallCount() != 1 {
		t.Errorf("dispatch count = %d, want 1", transport.CallCount())
	}
}

func TestGate_CriticalBlocksDispatch(t *testing.T) {
	transport := testutil.NewRecordingTransport()
	f := newFetcher(t, transport)
	gate := NewGate(staticSource{state: stateWith(2)}, 0, zerolog.Nop())

	_, err := f.Fetch(context.Background(), fetch.URL("/a"), nil, gate)

	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindPluginRequestWillFetch {
		t.Fatalf("Fetch() error = %v, want plugin error", err)
	}
	if fe.Details.PluginName != "rate-limit-gate" {
		t.Errorf("PluginName = %q", fe.Details.PluginName)
	}
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("errors.Is(err, ErrBlocked) = false: %v", err)
	}
	if transport.CallCount() != 0 {
		t.Errorf("dispatch count = %d, want 0", transport.CallCount())
	}
}

func TestGate_Throttles(t *testing.T) {
	transport := testutil.NewRecordingTransport()
	f := newFetcher(t, transport)
	delay := 50 * time.Millisecond
	gate := NewGate(staticSource{state: stateWith(10)}, delay, zerolog.Nop())

	start := time.Now()
	resp, err := f.Fetch(context.Background(), fetch.URL("/a"), nil, gate)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("elapsed = %v, want at least %v", elapsed, delay)
	}
	if transport.CallCount() != 1 {
		t.Errorf("dispatch count = %d, want 1", transport.CallCount())
	}
}

func TestGate_ThrottleHonorsContext(t *testing.T) {
	transport := testutil.NewRecordingTransport()
	f := newFetcher(t, transport)
	gate := NewGate(staticSource{state: stateWith(10)}, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, fetch.URL("/a"), nil, gate)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
	if transport.CallCount() != 0 {
		t.Errorf("dispatch count = %d, want 0", transport.CallCount())
	}
}

func TestGate_StateError(t *testing.T) {
	transport := testutil.NewRecordingTransport()
	f := newFetcher(t, transport)
	redisDown := errors.New("redis down")
	gate := NewGate(staticSource{err: redisDown}, 0, zerolog.Nop())

	_, err := f.Fetch(context.Background(), fetch.URL("/a"), nil, gate)
	if !fetch.IsKind(err, fetch.KindPluginRequestWillFetch) || !errors.Is(err, redisDown) {
		t.Fatalf("Fetch() error = %v", err)
	}
}

type recordingRecorder struct {
	headers []http.Header
	err     error
}

func (r *recordingRecorder) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	r.headers = append(r.headers, headers)
	return r.err
}

func TestTransport_RecordsHeaders(t *testing.T) {
	upstream := testutil.NewMockUpstream()
	defer upstream.Close()
	upstream.SetResponse("/limited", testutil.NewRateLimitedResponse(42, 60))

	httpTransport, err := fetch.NewHTTPTransport(fetch.HTTPTransportConfig{BaseURL: upstream.URL()})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	recorder := &recordingRecorder{err: errors.New("ignored")}
	f := newFetcher(t, NewTransport(httpTransport, recorder, zerolog.Nop()))

	resp, err := f.Fetch(context.Background(), fetch.URL("/limited"), nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if len(recorder.headers) != 1 {
		t.Fatalf("recorded %d header sets, want 1", len(recorder.headers))
	}
	if got := recorder.headers[0].Get(HeaderRemaining); got != "42" {
		t.Errorf("%s = %q, want 42", HeaderRemaining, got)
	}
}

func TestTransport_PassesDispatchErrors(t *testing.T) {
	dispatchErr := errors.New("net-down")
	recorder := &recordingRecorder{}
	f := newFetcher(t, NewTransport(testutil.NewFailingTransport(dispatchErr), recorder, zerolog.Nop()))

	_, err := f.Fetch(context.Background(), fetch.URL("/a"), nil)
	if err != dispatchErr {
		t.Fatalf("Fetch() error = %v, want %v", err, dispatchErr)
	}
	if len(recorder.headers) != 0 {
		t.Errorf("recorder called on failure")
	}
}
