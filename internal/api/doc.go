// Package api hosts the operator HTTP server for chansearch. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes; readyz pings the store.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/channels and /api/channels/{channel_id} for read-only crawl progress.
package api
