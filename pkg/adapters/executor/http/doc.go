// Package http implements the remote executor client over HTTP.
//
// Calls are bounded by a per-attempt timeout and retried at most once when
// the connection is refused or reset. Batches run strictly sequentially and
// stop at the first transport or timeout failure.
package http
