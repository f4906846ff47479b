// Package config loads workerhealthd configuration.
//
// Configuration comes from an optional YAML file, whose ${VAR} references
// are expanded strictly from the environment, followed by WORKERHEALTH_*
// environment overrides. Durations in the environment are milliseconds.
package config
