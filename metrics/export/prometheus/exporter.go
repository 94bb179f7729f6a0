package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	fleetAuth "github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() fleetAuth.MetricsSnapshot
	AuditDropped() uint64
	Snapshot() fleetAuth.State
}

// PrometheusExporter renders orchestrator counters, the provider latency
// histogram and the current auth state in Prometheus text format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from o on every scrape.
func NewPrometheusExporter(o *fleetAuth.Orchestrator) *PrometheusExporter {
	return &PrometheusExporter{source: o}
}

// NewPrometheusExporterFromSource is NewPrometheusExporter for any snapshot
// source, typically a test double.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns "" when metrics are disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}
	state := p.source.Snapshot()

	w := &textWriter{}
	w.b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		w.sample(def.Name, "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
	}
	w.family(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", strconv.FormatUint(dropped, 10))

	for _, def := range internaldefs.HistogramDefs {
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])))
	}

	for _, def := range internaldefs.GaugeDefs {
		w.family(def.Name, def.Help, "gauge")
		w.sample(def.Name, "", strconv.FormatInt(def.Value(state), 10))
	}
	w.family(internaldefs.StageGauge, internaldefs.StageGaugeHelp, "gauge")
	for _, st := range internaldefs.Stages {
		v := "0"
		if st == state.Stage {
			v = "1"
		}
		w.sample(internaldefs.StageGauge, label(internaldefs.StageLabel, st.String()), v)
	}

	return w.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) family(name, help, typ string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + typ + "\n")
}

func (w *textWriter) sample(name, labels, value string) {
	w.b.WriteString(name)
	w.b.WriteString(labels)
	w.b.WriteByte(' ')
	w.b.WriteString(value)
	w.b.WriteByte('\n')
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", label("le", le), strconv.FormatUint(cumulative[i], 10))
	}
	w.sample(name+"_count", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	// Snapshots carry no sum.
	w.sample(name+"_sum", "", "0")
}

func label(key, value string) string {
	return "{" + key + "=\"" + value + "\"}"
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
