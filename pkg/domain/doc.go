// Package domain defines the workflow graph, run state, records and errors
// shared by every scriptflow component.
//
// A workflow is a Graph of script-bearing Nodes joined by Edges. A run
// linearizes the graph, executes each script remotely and accumulates one
// ExecutionRecord per executed node into a Report.
package domain
