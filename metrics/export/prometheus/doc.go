// Package prometheus renders fleetAuth orchestrator metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] exposes an [net/http.Handler] for a /metrics route.
// Counters are named fleetauth_*_total; the single histogram is
// fleetauth_provider_latency_seconds. State gauges report whether the session
// is authenticated, whether an intent is running, the resend cooldown and a
// one-hot fleetauth_stage{stage="..."}. Nothing is registered globally.
package prometheus
