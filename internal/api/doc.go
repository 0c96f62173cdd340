// Package api implements the HTTP REST API and WebSocket server for heatpump-sync.
//
// This package provides:
//   - REST endpoints for device status, attributes, writes, settings and history
//   - WebSocket hub broadcasting attribute changes as they happen
//   - Optional JWT bearer authentication (HS256) on device routes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API sits beside the MQTT surface. Both end in the same per-device
// sessions of the heat pump bridge: writes go through the session's write
// queue, reads come from its attribute store and the settings store.
//
// # Security
//
// When security.jwt.secret is empty the device routes are open. Otherwise a
// bearer token signed with the secret is required, and WebSocket clients
// authenticate with a single-use ticket from POST /auth/ws-ticket so the
// token never appears in a URL.
package api
