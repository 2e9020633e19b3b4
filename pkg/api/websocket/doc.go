// Package websocket provides real-time run progress via WebSocket.
//
// Clients connect to /api/v1/runs/:id/ws and receive the run snapshot
// followed by its step and run events until the run ends.
package websocket
