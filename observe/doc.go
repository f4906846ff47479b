// Package observe provides the telemetry used across workerhealth.
//
// An Observer owns the OpenTelemetry tracer and meter providers and a
// zerolog-backed Logger. Instrumentation bundles a Tracer, the domain Metrics
// and a Logger for components that need all three.
package observe
