// Package progress tracks nested, step-by-step advancement of long-running
// work and reports it to listeners.
//
// Each goroutine drives its own TaskStack; only the innermost task of a stack
// may advance or complete. A Reporter fans task events out to listeners: events
// from its primary stack reach every listener, events from worker stacks only
// reach listeners that ask for all stacks. TaskOnSet mutes a stack while an
// externally driven sequence yields elements it did not expect.
//
// For asynchronous consumers, HubListener turns callbacks into Events and a Hub
// batches them on a background goroutine for pluggable sinks.
package progress
