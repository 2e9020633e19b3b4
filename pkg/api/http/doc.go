// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Batch script execution used by the editor (/execute-workflow)
//   - Synchronous workflow runs
//   - Graph editing and asynchronous runs of edited graphs
//   - Run status, results and cancellation
//   - Health checks and Prometheus metrics
package http
