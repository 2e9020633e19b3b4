// Package orchestrator implements the core orchestration logic for workflow runs.
//
// The orchestrator manager coordinates a run by:
//   - Resolving the graph into a single linear order
//   - Executing each node's script on the remote executor, one at a time
//   - Collecting per-node records in the result aggregator
//   - Publishing events and persisting run snapshots as the run progresses
//
// Soft script errors are recorded and the run continues. Transport and
// timeout failures end the run with the failing node as its last record.
package orchestrator
