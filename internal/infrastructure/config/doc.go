// Package config loads and validates the automation service configuration.
//
// Loading order: built-in defaults, then the YAML file, then GRAYLOGIC_*
// environment variables, then Validate().
//
// Secrets (JWT secret, MQTT password, InfluxDB token) should come from the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/automation.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, domain := range cfg.Automation.Integrations {
//	    fmt.Println(domain)
//	}
package config
