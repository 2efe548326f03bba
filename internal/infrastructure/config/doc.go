// Package config handles loading and validating inventory core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with INVENTORY_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (JWT secret, MQTT password, recognition API key, InfluxDB token)
// should be supplied through the environment. cmd/inventory loads an optional
// .env file before calling Load.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Lighting.CommandTimeout)
package config
