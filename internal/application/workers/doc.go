// Package workers implements the worker pool that executes submitted runs.
//
// A fixed number of goroutines drain a bounded job queue. Each job is a
// whole workflow run, so independent runs proceed concurrently while the
// steps inside one run stay sequential.
//
// The health monitor tracks worker status and feeds the pool gauges.
package workers
