// Package sinks implements concrete progress consumers: a line-oriented
// console report, structured zap logging, and Prometheus collectors. Each sink
// satisfies progress.Sink.
package sinks
