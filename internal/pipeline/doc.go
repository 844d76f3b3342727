// Package pipeline runs the demo build workload that drives the progress
// engine: a coordinator task on the primary stack fans compile units out to
// worker goroutines, each on its own forked stack, and every worker walks a
// noisy artifact stream with a TaskOnSet.
package pipeline
