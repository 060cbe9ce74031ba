package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/config"
)

func TestAppCrawlsSite(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/one">1</a><a href="/two">2</a><a href="/">home</a>`)
	})
	mux.HandleFunc("/one", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/deep">deep</a>`)
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/", 1)
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	a, err := New(context.Background(), cfg, zap.NewNop(), Options{
		Stdout:     stdout,
		Stderr:     stderr,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := a.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	require.EqualValues(t, 3, summary.Claimed)
	require.EqualValues(t, 2, summary.Succeeded)
	require.EqualValues(t, 1, summary.Failed)
	require.Equal(t, a.RunID().String(), summary.RunID)

	out := stdout.String()
	require.Contains(t, out, "Crawling: "+srv.URL+"/ | Depth: 0")
	require.Contains(t, out, "Crawling: "+srv.URL+"/one | Depth: 1")
	require.NotContains(t, out, "/deep")
	require.Contains(t, stderr.String(), "Failed to fetch: "+srv.URL+"/two")
}

func TestAppSendsConfiguredHeaders(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<p>leaf</p>`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/", 0)
	cfg.Fetcher.Headers = map[string]string{"accept-language": "en-US"}
	a, err := New(context.Background(), cfg, nil, Options{
		Stdout:     &syncBuffer{},
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	require.EqualValues(t, 1, summary.Succeeded)
	require.Equal(t, "en-US", <-got)
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	require.Nil(t, requestHeaders(nil))
	h := requestHeaders(map[string]string{"x-trace": "yes"})
	require.Equal(t, http.Header{"X-Trace": {"yes"}}, h)
}

func TestAppRejectsInvalidSeed(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t, "not a url", 1), nil, Options{
		Stdout:     &syncBuffer{},
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.ErrorContains(t, err, "seed must be a non-empty absolute URL")
	require.NoError(t, a.Close(context.Background()))
}

func TestAppRedisUnavailable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://a.test", 1)
	cfg.Frontier.Backend = config.FrontierRedis
	cfg.Frontier.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := New(ctx, cfg, nil, Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "init redis frontier")
}

func TestAppDuplicateMetricsRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	cfg := testConfig(t, "https://a.test", 1)
	a, err := New(context.Background(), cfg, nil, Options{Registerer: reg, Stdout: &syncBuffer{}})
	require.NoError(t, err)
	defer a.Close(context.Background()) //nolint:errcheck // test cleanup

	_, err = New(context.Background(), cfg, nil, Options{Registerer: reg, Stdout: &syncBuffer{}})
	require.ErrorContains(t, err, "init progress metrics")
}

func testConfig(t *testing.T, seed string, depth int) config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Crawler.Seed = seed
	cfg.Crawler.MaxDepth = depth
	cfg.Crawler.Workers = 2
	cfg.Fetcher.Timeout = 2 * time.Second
	cfg.Progress.BatchWait = 10 * time.Millisecond
	return cfg
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Clone(b.buf.String())
}
