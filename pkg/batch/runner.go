package batch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/Sternrassler/fetchwrapper/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds runner configuration.
type Config struct {
	// MaxConcurrency is the maximum number of Fetch calls in flight.
	MaxConcurrency int

	// Timeout bounds each job, including reading its response body (0 = none).
	Timeout time.Duration
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
	}
}

// Fetcher is the part of fetch.Fetcher the runner needs.
type Fetcher interface {
	Fetch(ctx context.Context, input fetch.Input, opts *fetch.Options, plugins ...fetch.Plugin) (*http.Response, error)
}

// Job is one Fetch call.
type Job struct {
	Input   fetch.Input
	Options *fetch.Options
	Plugins []fetch.Plugin
}

// Result is the outcome of the job at Index.
type Result struct {
	Index    int
	Response *http.Response
	Err      error
}

// Runner executes jobs concurrently.
type Runner struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewRunner creates a runner over fetcher.
func NewRunner(fetcher Fetcher, config Config) (*Runner, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", config.Timeout)
	}

	return &Runner{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("batch"),
	}, nil
}

// FetchAll runs jobs and returns one Result per job, in job order.
// It returns once every job has finished. Jobs that have not started when
// ctx is cancelled report ctx.Err() without being dispatched.
func (r *Runner) FetchAll(ctx context.Context, jobs []Job) []Result {
	start := time.Now()
	results := make([]Result, len(jobs))

	var group errgroup.Group
	group.SetLimit(r.config.MaxConcurrency)

	for i, job := range jobs {
		group.Go(func() error {
			results[i] = r.run(ctx, i, job)
			return nil
		})
	}
	// Jobs never return errors to the group; failures live in results.
	_ = group.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	event := r.logger.Debug()
	if failed > 0 {
		event = r.logger.Warn()
	}
	event.
		Int("jobs", len(jobs)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results
}

func (r *Runner) run(ctx context.Context, index int, job Job) Result {
	if err := ctx.Err(); err != nil {
		return Result{Index: index, Err: err}
	}

	if r.config.Timeout <= 0 {
		resp, err := r.fetcher.Fetch(ctx, job.Input, job.Options, job.Plugins...)
		return Result{Index: index, Response: resp, Err: err}
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	resp, err := r.fetcher.Fetch(jobCtx, job.Input, job.Options, job.Plugins...)
	if err != nil || resp == nil {
		cancel()
		return Result{Index: index, Response: resp, Err: err}
	}

	// The job context must outlive Fetch so the body can still be read.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return Result{Index: index, Response: resp}
}

// cancelOnClose releases a job context when the response body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
