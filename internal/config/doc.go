// Package config provides configuration management for the predictor API.
//
// Configuration is loaded from environment variables using the env package.
// Defaults match a local run: HTTP on port 5000, in-memory event bus.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
