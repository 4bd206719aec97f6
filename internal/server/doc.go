// Package server exposes the relay over HTTP: the WebSocket endpoint
// that feeds the hub, the REST history and send endpoints, and a
// health check. Each accepted WebSocket is wrapped in a transport with
// a buffered outbound queue so one slow reader cannot stall the hub.
package server
