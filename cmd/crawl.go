package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/app"
	"github.com/JakeFAU/depth-crawler/internal/config"
	"github.com/JakeFAU/depth-crawler/internal/logging"
)

// errMissingSeed is returned when neither --seed nor crawler.seed is set.
var errMissingSeed = errors.New("a seed URL is required (--seed or crawler.seed)")

// newApp is the application factory. Tests swap it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (*app.App, error) {
	return app.New(ctx, cfg, logger, opts)
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from a seed URL up to a maximum depth",
		Long: `Crawls from --seed, following links until --max-depth hops from the seed.
Each page is fetched at most once. Progress lines go to stdout, fetch failures
to stderr, and a summary line is printed when the crawl ends.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	flags := cmd.Flags()
	flags.String("seed", "", "absolute URL to start from")
	flags.Int("max-depth", 2, "maximum hops from the seed")
	flags.Int("workers", 8, "number of concurrent workers")
	flags.String("frontier", config.FrontierMemory, "frontier backend: memory or redis")
	flags.String("fetcher", config.FetcherColly, "page fetcher: colly or headless")
	flags.String("serve", "", "address for the ops HTTP server, e.g. :9090")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Crawler.Seed == "" {
		return errMissingSeed
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger, app.Options{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	summary, runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("application close failed", zap.Error(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.String())

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		logger.Warn("crawl interrupted", zap.Error(runErr))
		return nil
	}
	return runErr
}
