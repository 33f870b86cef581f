// Package config implements the configuration store for the Item Sorter Container.
//
// Configuration starts from a baseline (robot endpoints, dispatch pacing,
// telemetry timing, HTTP and audit settings, a sample catalog), is overlaid by
// an optional YAML file and ISC_* environment variables, then validated.
package config
