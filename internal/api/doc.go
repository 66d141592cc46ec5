// Package api hosts the watch-mode HTTP server. Routes:
//   - GET /healthz and /readyz for probes. readyz reports the last run and
//     answers 503 when it failed.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to trigger a run immediately.
package api
