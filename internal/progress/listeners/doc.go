// Package listeners provides in-process progress.Listener implementations: a
// terminal bar for the primary stack and a snapshot of active tasks across all
// stacks for the HTTP API.
package listeners
