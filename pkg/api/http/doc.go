// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Predictions (POST /predict)
//   - Liveness status (GET /status)
//   - Prometheus metrics
//   - Event streaming over WebSocket
package http
