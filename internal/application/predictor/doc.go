// Package predictor implements the prediction and status operations.
//
// Both operations return constant payloads. The service also announces each
// served prediction on the event bus, and the health monitor publishes a
// periodic heartbeat and keeps the liveness gauge up to date.
package predictor
