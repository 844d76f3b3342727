// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/tasks for the live task stacks.
//   - GET /v1/runs and /v1/runs/{run_id} for task run history via the
//     RunRepository interface.
//   - POST /v1/builds to queue a demo build.
package api
