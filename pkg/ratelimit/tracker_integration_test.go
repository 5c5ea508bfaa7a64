//go:build integration

package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/fetchwrapper/internal/testutil"
	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})

	return client
}

func TestTracker_Integration_SharedAcrossFetchers(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	upstream := testutil.NewMockUpstream()
	defer upstream.Close()
	upstream.SetResponse("/exhausting", testutil.NewRateLimitedResponse(1, 60))

	httpTransport, err := fetch.NewHTTPTransport(fetch.HTTPTransportConfig{BaseURL: upstream.URL()})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}

	// Two trackers over one Redis behave like two processes.
	trackerA := NewTracker(client, zerolog.Nop())
	trackerB := NewTracker(client, zerolog.Nop())

	logger := zerolog.Nop()
	fetcherA, _ := fetch.New(fetch.Config{Transport: NewTransport(httpTransport, trackerA, logger), Logger: &logger})
	fetcherB, _ := fetch.New(fetch.Config{Transport: NewTransport(httpTransport, trackerB, logger), Logger: &logger})

	resp, err := fetcherA.Fetch(ctx, fetch.URL("/exhausting"), nil, NewGate(trackerA, 0, logger))
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	resp.Body.Close()

	_, err = fetcherB.Fetch(ctx, fetch.URL("/exhausting"), &fetch.Options{Method: http.MethodGet}, NewGate(trackerB, 0, logger))
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("second Fetch() error = %v, want ErrBlocked", err)
	}
	if upstream.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", upstream.RequestCount())
	}
}
