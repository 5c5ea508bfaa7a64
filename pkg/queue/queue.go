// Package queue stores requests whose dispatch failed in Redis and replays
// them later through a fetcher.
//
// # Basic Usage
//
//	q, err := queue.New(redisClient, queue.DefaultConfig("uploads"), logger)
//	if err != nil {
//		return err
//	}
//
//	// Failed dispatches are queued by the plugin.
//	resp, err := fetcher.Fetch(ctx, fetch.URL("/upload"), opts, auth, q)
//
//	// Later, when the upstream is reachable again. The request plugins run
//	// again on replay, so credentials are applied fresh and never stored.
//	result, err := q.Replay(ctx, fetcher, auth)
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultName is used when a queue is created without a name.
const DefaultName = "default"

// DefaultMaxRetention is how long an entry may wait before it is dropped.
const DefaultMaxRetention = 7 * 24 * time.Hour

var (
	// ErrEmpty indicates the queue has no entries.
	ErrEmpty = errors.New("queue is empty")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid queue entry")
)

// Fetcher is the part of fetch.Fetcher the queue needs for replays.
type Fetcher interface {
	Fetch(ctx context.Context, input fetch.Input, opts *fetch.Options, plugins ...fetch.Plugin) (*http.Response, error)
}

// Config holds queue configuration.
type Config struct {
	// Name identifies the queue; queues with the same name share entries.
	Name string

	// MaxRetention drops entries older than this on replay (0 keeps them forever).
	MaxRetention time.Duration
}

// DefaultConfig returns a configuration for the named queue.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRetention: DefaultMaxRetention,
	}
}

// Queue is a FIFO of failed requests stored in a Redis list. It is also a
// fetchDidFail plugin: adding it to a Fetch call queues the request when the
// dispatch fails.
type Queue struct {
	redis        *redis.Client
	name         string
	key          string
	maxRetention time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates a queue backed by redisClient.
func New(redisClient *redis.Client, cfg Config, logger zerolog.Logger) (*Queue, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.MaxRetention < 0 {
		return nil, fmt.Errorf("max_retention must be >= 0 (got %s)", cfg.MaxRetention)
	}

	return &Queue{
		redis:        redisClient,
		name:         cfg.Name,
		key:          Key(cfg.Name),
		maxRetention: cfg.MaxRetention,
		logger:       logger.With().Str("queue", cfg.Name).Logger(),
		now:          time.Now,
	}, nil
}

// Name implements fetch.Namer.
func (q *Queue) Name() string {
	return "queue:" + q.name
}

// FetchDidFail implements fetch.FetchDidFailer. It queues the original
// request, before any plugin rewrites, so headers added by plugins (such as
// credentials) are not persisted. A storage error is returned and therefore
// replaces the dispatch error seen by the caller.
func (q *Queue) FetchDidFail(ctx context.Context, hc *fetch.HookContext) error {
	if _, err := q.Push(ctx, hc.OriginalRequest, hc.Error); err != nil {
		return fmt.Errorf("queue failed request: %w", err)
	}
	return nil
}

// Push appends req to the end of the queue.
func (q *Queue) Push(ctx context.Context, req *fetch.Request, cause error) (*Entry, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	entry := newEntry(req, cause, q.now())
	data, err := json.Marshal(entry)
	if err != nil {
		QueueErrors.WithLabelValues("push").Inc()
		return nil, fmt.Errorf("marshal queue entry: %w", err)
	}

	if err := q.redis.RPush(ctx, q.key, data).Err(); err != nil {
		QueueErrors.WithLabelValues("push").Inc()
		return nil, fmt.Errorf("redis rpush: %w", err)
	}

	QueuePushed.WithLabelValues(q.name).Inc()
	q.logger.Debug().
		Str("entry_id", entry.ID).
		Str("url", req.URL).
		Str("method", req.Method).
		Msg("Queued failed request")

	return entry, nil
}

// Size returns the number of queued entries.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	n, err := q.redis.LLen(ctx, q.key).Result()
	if err != nil {
		QueueErrors.WithLabelValues("size").Inc()
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// Entries returns all queued entries in replay order without removing them.
func (q *Queue) Entries(ctx context.Context) ([]*Entry, error) {
	raw, err := q.redis.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	entries := make([]*Entry, 0, len(raw))
	for _, data := range raw {
		entry, err := decodeEntry([]byte(data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// shift removes and returns the entry at the head of the queue.
func (q *Queue) shift(ctx context.Context) (*Entry, error) {
	data, err := q.redis.LPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		QueueErrors.WithLabelValues("shift").Inc()
		return nil, fmt.Errorf("redis lpop: %w", err)
	}
	return decodeEntry(data)
}

// unshift puts entry back at the head of the queue.
func (q *Queue) unshift(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		QueueErrors.WithLabelValues("unshift").Inc()
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		QueueErrors.WithLabelValues("unshift").Inc()
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Request == nil {
		return nil, fmt.Errorf("%w: missing request", ErrInvalidEntry)
	}
	return &entry, nil
}

// ReplayResult summarizes one Replay call.
type ReplayResult struct {
	Replayed int
	Dropped  int
}

// Replay re-sends queued requests in FIFO order through f with plugins.
// plugins should be the request plugins of the original call without the
// queue itself; a failed replay is re-queued here. Entries past the retention
// period and entries that cannot be decoded are dropped. Any response counts
// as delivered. The first failed replay puts its entry back at the head of the
// queue and stops the replay; its error is returned together with the
// progress so far.
func (q *Queue) Replay(ctx context.Context, f Fetcher, plugins ...fetch.Plugin) (ReplayResult, error) {
	var result ReplayResult

	for {
		entry, err := q.shift(ctx)
		if errors.Is(err, ErrEmpty) {
			break
		}
		if errors.Is(err, ErrInvalidEntry) {
			QueueDropped.WithLabelValues(q.name).Inc()
			q.logger.Error().Err(err).Msg("Dropped undecodable queue entry")
			result.Dropped++
			continue
		}
		if err != nil {
			return result, err
		}

		if entry.IsExpired(q.maxRetention, q.now()) {
			QueueDropped.WithLabelValues(q.name).Inc()
			q.logger.Info().
				Str("entry_id", entry.ID).
				Time("queued_at", entry.QueuedAt).
				Msg("Dropped expired queue entry")
			result.Dropped++
			continue
		}

		resp, err := f.Fetch(ctx, entry.Request.Clone(), nil, plugins...)
		if err != nil {
			QueueReplayed.WithLabelValues(q.name, "failure").Inc()
			entry.Attempts++
			entry.Error = err.Error()
			if uerr := q.unshift(ctx, entry); uerr != nil {
				return result, errors.Join(err, uerr)
			}
			q.logger.Warn().
				Err(err).
				Str("entry_id", entry.ID).
				Int("attempts", entry.Attempts).
				Msg("Replay failed, entry kept at head of queue")
			return result, fmt.Errorf("replay %s: %w", entry.ID, err)
		}
		resp.Body.Close()

		QueueReplayed.WithLabelValues(q.name, "success").Inc()
		q.logger.Debug().
			Str("entry_id", entry.ID).
			Int("status", resp.StatusCode).
			Msg("Replayed queued request")
		result.Replayed++
	}

	q.logger.Info().
		Int("replayed", result.Replayed).
		Int("dropped", result.Dropped).
		Msg("Queue replay complete")

	return result, nil
}
