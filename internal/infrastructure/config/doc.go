// Package config handles loading and validating Gray Logic client configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Account credentials should be set via environment variables
//     (GRAYLOGIC_SESSION_USERNAME, GRAYLOGIC_SESSION_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/client.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Platform.URL)
package config
