// Package metrics holds the Prometheus metrics for sessions, motion and the
// encoder. All metrics are registered with promauto on the default registry
// and served by exporters.HTTPHandler.
package metrics
