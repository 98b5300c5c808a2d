// Package api hosts the status HTTP server that runs alongside ingestion.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/latest for the summary of the last completed run.
package api
