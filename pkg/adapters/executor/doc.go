// Package executor holds clients for the remote script executor.
//
// The executor is an opaque HTTP service: POST <url>/execute with
// {"script": "..."} answers {"result": ..., "stdout": ..., "error": ...}.
package executor
