// Package config provides configuration management for scriptflow.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use;
// Redis is only contacted when a backend asks for it.
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
