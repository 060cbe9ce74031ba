// Package progress carries the crawl's diagnostic stream. Tasks emit Events
// through a non-blocking Hub which batches them on a background goroutine and
// fans them out to pluggable sinks (console lines, zap logs, Prometheus).
package progress
