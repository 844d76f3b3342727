// Package main hosts the progressd entrypoint.
//
// Architecture overview:
//   - Progress engine: internal/progress tracks nested tasks per goroutine. The
//     coordinating goroutine owns the reporter's primary stack; build workers
//     fork their own stacks, and TaskOnSet mutes a stack while a worker walks
//     scratch files it did not expect.
//   - Listeners: a lipgloss progress bar follows the primary stack only, a
//     snapshot listener tracks every stack for GET /v1/tasks, and a hub
//     listener turns callbacks into events for the batching Hub.
//   - Sinks: the Hub fans event batches out to zap logging, Prometheus
//     collectors, and task run history (Postgres when db.dsn is set, memory
//     otherwise).
//   - HTTP API: internal/api serves probes, /metrics, live tasks, run history,
//     and POST /v1/builds, which queues builds for the single runner goroutine.
//
// Commands:
//   - progressd run: execute one build in the foreground with the bar on stderr.
//   - progressd serve: start the API and build runner until SIGINT/SIGTERM.
//
// Configuration comes from an optional file (--config) plus PROGRESSD_*
// environment overrides, e.g. PROGRESSD_DB_DSN or PROGRESSD_PIPELINE_WORKERS.
package main
