// Package metrics provides the centralized Prometheus registry reference
// for the usage exporter. All metrics are defined in their respective
// packages (videosdk, export, jobs) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Upstream API Metrics (pkg/videosdk):
//   - videosdk_requests_total{status} (Counter): Requests to the sessions API by HTTP status
//   - videosdk_request_duration_seconds (Histogram): Sessions API request duration
//   - videosdk_pages_fetched_total (Counter): Pages fetched from the sessions API
//   - videosdk_sessions_fetched_total (Counter): Session records fetched
//
// Export Metrics (pkg/export):
//   - usage_export_rows_total (Counter): CSV rows written across all exports
//   - usage_exports_total (Counter): Completed CSV exports
//
// Job Metrics (pkg/jobs):
//   - usage_jobs_started_total{kind} (Counter): Jobs started by kind (fetch, export)
//   - usage_jobs_finished_total{kind, status} (Counter): Jobs finished by kind and terminal status
//   - usage_job_duration_seconds{kind} (Histogram): Job duration to terminal state
//   - usage_jobs_active (Gauge): Jobs currently tracked by the registry
//
// Example Prometheus Queries:
//
//   # Upstream error rate
//   sum(rate(videosdk_requests_total{status!~"2.."}[5m])) /
//   sum(rate(videosdk_requests_total[5m]))
//
//   # Job failure rate by kind
//   rate(usage_jobs_finished_total{status="error"}[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(videosdk_request_duration_seconds_bucket[5m]))
//
//   # Jobs waiting to be polled to completion
//   usage_jobs_active
