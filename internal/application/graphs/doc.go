// Package graphs keeps the editable workflow graphs behind the editor API.
//
// Graphs live in memory only. Runs never read a registry graph directly;
// they receive a snapshot taken when the run is submitted.
package graphs
