// Package config handles loading and validating the simulator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_SIM_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// A missing configuration file is not an error: Load("") returns the
// defaults, which run an empty simulation against a local broker.
//
// Usage:
//
//	cfg, err := config.Load("configs/sim.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Simulation.TickInterval)
package config
