// Package config handles loading and validating heatpump-sync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HPSYNC_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (myUplink token, MQTT password, JWT secret) should be
//     set via environment variables or a .env file loaded by the caller
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.ID, d.Family)
//	}
package config
