package otel

import (
	"context"
	"errors"
	"fmt"

	fleetAuth "github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() fleetAuth.MetricsSnapshot
	AuditDropped() uint64
	Snapshot() fleetAuth.State
}

// reading is one consistent view of the source, taken once per collection.
type reading struct {
	metrics fleetAuth.MetricsSnapshot
	state   fleetAuth.State
	dropped uint64
}

type observeFunc func(metric.Observer, *reading)

// OTelExporter owns the callback registration; Close unregisters it.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	instruments  []metric.Observable
	observe      []observeFunc
}

// NewOTelExporter registers observable instruments on meter that read o on
// each collection.
func NewOTelExporter(meter metric.Meter, o *fleetAuth.Orchestrator) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, o)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	if err := e.define(meter); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.collect, e.instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) define(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := e.counter(meter, def.Name, def.Help, func(r *reading) int64 {
			return int64(r.metrics.Counters[id])
		}); err != nil {
			return err
		}
	}
	if err := e.counter(meter, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, func(r *reading) int64 {
		return int64(r.dropped)
	}); err != nil {
		return err
	}

	for _, def := range internaldefs.HistogramDefs {
		if err := e.histogram(meter, def); err != nil {
			return err
		}
	}

	for _, def := range internaldefs.GaugeDefs {
		value := def.Value
		if err := e.gauge(meter, def.Name, def.Help, func(o metric.Observer, g metric.Int64ObservableGauge, r *reading) {
			o.ObserveInt64(g, value(r.state))
		}); err != nil {
			return err
		}
	}

	stageAttrs := make([]metric.ObserveOption, len(internaldefs.Stages))
	for i, st := range internaldefs.Stages {
		stageAttrs[i] = metric.WithAttributes(attribute.String(internaldefs.StageLabel, st.String()))
	}
	return e.gauge(meter, internaldefs.StageGauge, internaldefs.StageGaugeHelp, func(o metric.Observer, g metric.Int64ObservableGauge, r *reading) {
		for i, st := range internaldefs.Stages {
			var v int64
			if st == r.state.Stage {
				v = 1
			}
			o.ObserveInt64(g, v, stageAttrs[i])
		}
	})
}

func (e *OTelExporter) counter(meter metric.Meter, name, help string, read func(*reading) int64) error {
	ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("create observable counter %s: %w", name, err)
	}
	e.instruments = append(e.instruments, ins)
	e.observe = append(e.observe, func(o metric.Observer, r *reading) {
		o.ObserveInt64(ins, read(r))
	})
	return nil
}

func (e *OTelExporter) gauge(meter metric.Meter, name, help string, fn func(metric.Observer, metric.Int64ObservableGauge, *reading)) error {
	ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("create observable gauge %s: %w", name, err)
	}
	e.instruments = append(e.instruments, ins)
	e.observe = append(e.observe, func(o metric.Observer, r *reading) {
		fn(o, ins, r)
	})
	return nil
}

// histogram exports cumulative bucket gauges and a count. Observable
// instruments cannot carry a native histogram.
func (e *OTelExporter) histogram(meter metric.Meter, def internaldefs.HistogramDef) error {
	cumulative := func(r *reading) [8]uint64 {
		return internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(r.metrics.Histograms[def.ID]))
	}
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		bucket := i
		if err := e.gauge(meter, def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.", func(o metric.Observer, g metric.Int64ObservableGauge, r *reading) {
			o.ObserveInt64(g, int64(cumulative(r)[bucket]))
		}); err != nil {
			return err
		}
	}
	return e.gauge(meter, def.Name+"_count", "Histogram total sample count.", func(o metric.Observer, g metric.Int64ObservableGauge, r *reading) {
		c := cumulative(r)
		o.ObserveInt64(g, int64(c[len(c)-1]))
	})
}

func (e *OTelExporter) collect(_ context.Context, o metric.Observer) error {
	r := &reading{
		metrics: e.source.MetricsSnapshot(),
		state:   e.source.Snapshot(),
		dropped: e.source.AuditDropped(),
	}
	for _, fn := range e.observe {
		fn(o, r)
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
