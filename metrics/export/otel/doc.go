// Package otel binds fleetAuth orchestrator metrics and auth state to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] creates one Int64ObservableCounter per counter, gauges for
// the provider latency buckets, and state gauges (authenticated, busy, resend
// cooldown and a stage gauge carrying a "stage" attribute). A single callback
// reads one snapshot per collection. The caller owns the MeterProvider.
package otel
