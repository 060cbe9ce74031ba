package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/app"
	"github.com/JakeFAU/depth-crawler/internal/config"
)

// These tests share cfgFile and newApp, so they do not run in parallel.

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "depthcrawl dev")
}

func TestCrawlRequiresSeed(t *testing.T) {
	_, _, err := execute(t, "crawl")
	require.ErrorIs(t, err, errMissingSeed)
}

func TestCrawlRejectsBadConfig(t *testing.T) {
	_, _, err := execute(t, "crawl", "--seed", "https://a.test", "--workers", "0")
	require.ErrorContains(t, err, "crawler.workers")
}

func TestCrawlCommandEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<a href="/next">next</a>`)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "depthcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("progress:\n  batch_wait: 10ms\nlogging:\n  level: error\n"), 0o600))

	useRegistry(t)
	out, _, err := execute(t, "--config", path, "crawl", "--seed", srv.URL+"/", "--max-depth", "1", "--workers", "2")
	require.NoError(t, err)
	require.Contains(t, out, "Crawling: "+srv.URL+"/ | Depth: 0")
	require.Contains(t, out, "Crawling: "+srv.URL+"/next | Depth: 1")
	require.Contains(t, out, "Crawl finished: seed="+srv.URL+"/ max_depth=1 claimed=2 started=2 succeeded=2 failed=0 rejected=0")
}

// useRegistry points the app at a private Prometheus registry.
func useRegistry(t *testing.T) {
	t.Helper()
	orig := newApp
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (*app.App, error) {
		opts.Registerer = prometheus.NewRegistry()
		return orig(ctx, cfg, logger, opts)
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cfgFile = ""
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
