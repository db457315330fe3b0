// Package metrics exports the daemon state and counters to Prometheus.
package metrics
