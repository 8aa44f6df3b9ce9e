// Package websocket streams event bus traffic to WebSocket clients.
package websocket
