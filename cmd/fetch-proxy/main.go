// Command fetch-proxy forwards HTTP requests to an upstream through the
// fetch orchestrator, with auth, telemetry, rate limiting and a queue for
// requests that could not be delivered.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/Sternrassler/fetchwrapper/pkg/logging"
	"github.com/Sternrassler/fetchwrapper/pkg/plugins"
	"github.com/Sternrassler/fetchwrapper/pkg/queue"
	"github.com/Sternrassler/fetchwrapper/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "fetch-proxy",
		Short:        "HTTP proxy built on the fetch orchestrator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "fetch-proxy.yaml", "config file")

	root.AddCommand(newServeCmd(&cfgFile), newReplayCmd(&cfgFile))
	return root
}

func newServeCmd(cfgFile *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*cfgFile)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.serve(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func newReplayCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay requests from the failed-request queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*cfgFile)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.queue == nil {
				return fmt.Errorf("replay requires redis_url")
			}

			result, err := app.queue.Replay(cmd.Context(), app.fetcher, app.requestPlugins...)
			fmt.Fprintf(cmd.OutOrStdout(), "replayed=%d dropped=%d\n", result.Replayed, result.Dropped)
			return err
		},
	}
}

// app holds the components shared by the subcommands.
type app struct {
	logger  zerolog.Logger
	redis   *redis.Client
	fetcher *fetch.Fetcher
	queue   *queue.Queue
	timeout time.Duration

	// requestPlugins run on every request, including queue replays.
	requestPlugins []fetch.Plugin

	// plugins is requestPlugins plus the failure queue, for proxied requests.
	plugins []fetch.Plugin
}

func newApp(ctx context.Context, cfg *Config) (*app, error) {
	logger := logging.Setup(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "fetch-proxy",
	})

	httpTransport, err := fetch.NewHTTPTransport(fetch.HTTPTransportConfig{
		Client:  &http.Client{Timeout: cfg.Timeout},
		BaseURL: cfg.Upstream,
	})
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, timeout: cfg.Timeout}

	var transport fetch.Transport = httpTransport
	if cfg.UpstreamToken != "" {
		a.requestPlugins = append(a.requestPlugins, plugins.BearerToken(cfg.UpstreamToken))
	}
	a.requestPlugins = append(a.requestPlugins, plugins.NewTelemetry(logging.NewLogger("telemetry")))

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if redisOpts != nil {
		a.redis = redis.NewClient(redisOpts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")

		tracker := ratelimit.NewTracker(a.redis, logging.NewLogger("ratelimit"))
		transport = ratelimit.NewTransport(transport, tracker, logging.NewLogger("ratelimit"))
		a.requestPlugins = append(a.requestPlugins, ratelimit.NewGate(tracker, cfg.RateLimit.ThrottleDelay, logging.NewLogger("ratelimit")))

		a.queue, err = queue.New(a.redis, queue.Config{
			Name:         cfg.Queue.Name,
			MaxRetention: cfg.Queue.MaxRetention,
		}, logging.NewLogger("queue"))
		if err != nil {
			a.redis.Close()
			return nil, err
		}
	}

	a.plugins = append([]fetch.Plugin(nil), a.requestPlugins...)
	if a.queue != nil {
		a.plugins = append(a.plugins, queueUnsafeMethods(a.queue))
	}

	fetchLogger := logging.NewLogger("fetch")
	a.fetcher, err = fetch.New(fetch.Config{Transport: transport, Logger: &fetchLogger})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// queueUnsafeMethods queues failed requests except GET and HEAD, which have
// no side effects worth delivering later.
func queueUnsafeMethods(q *queue.Queue) *fetch.Funcs {
	return &fetch.Funcs{
		PluginName: q.Name(),
		FetchDidFailFunc: func(ctx context.Context, hc *fetch.HookContext) error {
			switch hc.Request.Method {
			case http.MethodGet, http.MethodHead:
				return nil
			}
			return q.FetchDidFail(ctx, hc)
		},
	}
}

func (a *app) server() *server {
	return &server{
		fetcher: a.fetcher,
		plugins: a.plugins,
		redis:   a.redis,
		timeout: a.timeout,
		logger:  logging.NewLogger("proxy"),
	}
}

func (a *app) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.server().routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	a.logger.Info().Str("listen", addr).Int("plugins", len(a.plugins)).Msg("Starting fetch proxy")

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down fetch proxy")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close releases the Redis connection, if any.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
