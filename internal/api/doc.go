// Package api hosts the ops HTTP server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for live crawl, pool and frontier counters.
package api
