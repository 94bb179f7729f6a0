// Package internaldefs holds the metric names and bucket bounds shared by the
// Prometheus and OTel exporters, so both expose identical fleetauth_* series.
//
// This package performs no I/O and imports no exporter package.
package internaldefs
