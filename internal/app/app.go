// Package app builds the crawl's long-lived services from configuration and
// owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/api"
	"github.com/JakeFAU/depth-crawler/internal/config"
	"github.com/JakeFAU/depth-crawler/internal/crawler"
	"github.com/JakeFAU/depth-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/depth-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/depth-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/depth-crawler/internal/frontier"
	"github.com/JakeFAU/depth-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/depth-crawler/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/depth-crawler/internal/queue/memory"
)

const shutdownTimeout = 10 * time.Second

// Options override process-level dependencies, mostly for tests.
type Options struct {
	Stdout     io.Writer
	Stderr     io.Writer
	Registerer prometheus.Registerer
	// Fetcher replaces the configured fetcher when set.
	Fetcher crawler.Fetcher
}

// frontierBackend is what the app needs from a frontier: claims for the
// crawl and a size for the status endpoint.
type frontierBackend interface {
	crawler.Frontier
	api.FrontierStatus
}

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    uuid.UUID
	frontier frontierBackend
	crawler  *crawler.Crawler
	dispatch *dispatcher.Dispatcher
	hub      *progress.Hub
	emitter  progress.Emitter
	server   *http.Server
	closers  []func() error
}

// New wires the frontier, fetcher, progress hub, dispatcher and crawler
// described by cfg. Nothing runs until Run.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, runID: runID}

	if err := a.buildFrontier(ctx); err != nil {
		return nil, err
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		if fetcher, err = a.buildFetcher(); err != nil {
			a.closeResources()
			return nil, err
		}
	}
	if err := a.buildProgress(opts); err != nil {
		a.closeResources()
		return nil, err
	}

	a.crawler = crawler.New(
		crawler.Config{RunID: runID, MaxDepth: cfg.Crawler.MaxDepth},
		a.frontier,
		fetcher,
		a.emitter,
		logger.Named("crawler"),
	)
	a.dispatch = dispatcher.New(
		dispatcher.Config{Workers: cfg.Crawler.Workers},
		queueMemory.NewQueue(cfg.Crawler.QueueCapacity),
		a.crawler.Expand,
		logger.Named("dispatcher"),
	)

	if cfg.Server.Addr != "" {
		apiServer := api.NewServer(a.crawler, a.dispatch, a.frontier, logger.Named("api"))
		a.server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	logger.Info("application created",
		zap.String("run_id", runID.String()),
		zap.String("frontier", cfg.Frontier.Backend),
		zap.String("fetcher", cfg.Fetcher.Kind),
		zap.Int("workers", cfg.Crawler.Workers),
		zap.Int("max_depth", cfg.Crawler.MaxDepth),
	)
	return a, nil
}

// RunID identifies this crawl in logs, progress events and the Redis key.
func (a *App) RunID() uuid.UUID {
	return a.runID
}

// Run crawls from the configured seed until the task graph is exhausted,
// ctx ends, or the process receives SIGINT/SIGTERM. The summary is valid
// even when an error is returned.
func (a *App) Run(ctx context.Context) (crawler.Summary, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.dispatch.Start(ctx)
	if a.server != nil {
		go func() {
			a.logger.Info("ops server started", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server error", zap.Error(err))
			}
		}()
	}

	summary, err := a.crawler.Run(ctx, a.cfg.Crawler.Seed, a.dispatch)
	a.dispatch.Shutdown()
	if err != nil {
		return summary, fmt.Errorf("crawl %s: %w", a.cfg.Crawler.Seed, err)
	}
	return summary, nil
}

// Close stops the workers, flushes progress output, and releases the
// frontier, fetcher and ops server.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown ops server: %w", err))
		}
	}
	if a.dispatch != nil {
		if err := a.dispatch.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) buildFrontier(ctx context.Context) error {
	switch a.cfg.Frontier.Backend {
	case config.FrontierRedis:
		fr, err := frontier.NewRedis(ctx, frontier.RedisConfig{
			Addr:      a.cfg.Frontier.RedisAddr,
			Password:  a.cfg.Frontier.RedisPassword,
			DB:        a.cfg.Frontier.RedisDB,
			KeyPrefix: a.cfg.Frontier.KeyPrefix,
			TTL:       a.cfg.Frontier.TTL,
		}, a.runID.String(), a.logger.Named("frontier"))
		if err != nil {
			return fmt.Errorf("init redis frontier: %w", err)
		}
		a.frontier = fr
		a.closers = append(a.closers, fr.Close)
		a.logger.Info("using redis frontier", zap.String("key", fr.Key()))
	default:
		a.frontier = frontier.NewMemory(a.cfg.Frontier.Shards)
	}
	return nil
}

func (a *App) buildFetcher() (crawler.Fetcher, error) {
	switch a.cfg.Fetcher.Kind {
	case config.FetcherHeadless:
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Fetcher.HeadlessMaxParallel,
			UserAgent:         a.cfg.Fetcher.UserAgent,
			NavigationTimeout: a.cfg.Fetcher.HeadlessNavTimeout,
			Headers:           requestHeaders(a.cfg.Fetcher.Headers),
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		return f, nil
	default:
		return collyfetcher.New(collyfetcher.Config{
			UserAgent:    a.cfg.Fetcher.UserAgent,
			Timeout:      a.cfg.Fetcher.Timeout,
			MaxBodyBytes: a.cfg.Fetcher.MaxBodyBytes,
			Headers:      requestHeaders(a.cfg.Fetcher.Headers),
		}), nil
	}
}

// requestHeaders canonicalizes configured header names, which viper lowercases.
func requestHeaders(in map[string]string) http.Header {
	if len(in) == 0 {
		return nil
	}
	out := make(http.Header, len(in))
	for k, v := range in {
		out.Set(k, v)
	}
	return out
}

func (a *App) buildProgress(opts Options) error {
	promSink, err := progresssinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	sinks := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.BatchEvents,
		MaxBatchWait:   a.cfg.Progress.BatchWait,
		Logger:         a.logger.Named("progress"),
	}, sinks...)
	a.emitter = a.hub
	// The hub drops under backpressure; report lines must not.
	if a.cfg.Progress.Lines {
		lines := progresssinks.NewLineSink(opts.Stdout, opts.Stderr)
		a.emitter = progress.Tee(a.hub, progress.Direct(lines, a.logger.Named("progress")))
	}
	return nil
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
