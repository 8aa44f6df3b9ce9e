// Package ports defines the interfaces between the predictor application
// and its adapters (event bus, metrics).
package ports
