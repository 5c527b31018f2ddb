package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/metrics/export/internaldefs"
)

// ContentType is the exposition format served by [Exporter.Handler].
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads on every scrape. *memberAuth.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() memberAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics as labelled Prometheus families.
type Exporter struct {
	source Source
}

// New returns an exporter over source.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics. Scrapes of an engine with metrics
// disabled get an empty 200.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the exposition text.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	var current string
	for _, def := range internaldefs.CounterDefs {
		if def.Family.Name != current {
			current = def.Family.Name
			writeHeader(&b, def.Family.Name, def.Family.Help, "counter")
		}
		writeSample(&b, def.Family.Name, def.Family.Label, def.Value, snapshot.Counters[def.ID])
	}

	writeHeader(&b, internaldefs.AuditDropped.Name, internaldefs.AuditDropped.Help, "counter")
	writeSample(&b, internaldefs.AuditDropped.Name, "", "", dropped)

	if raw, ok := snapshot.Histograms[internaldefs.ValidateLatency.ID]; ok {
		writeLatency(&b, raw, snapshot.LatencySums[internaldefs.ValidateLatency.ID].Seconds())
	}

	return b.String()
}

func writeLatency(b *strings.Builder, raw []uint64, sumSeconds float64) {
	name := internaldefs.ValidateLatency.Name
	writeHeader(b, name, internaldefs.ValidateLatency.Help, "histogram")

	cumulative := internaldefs.CumulativeBuckets(raw)
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, name+"_bucket", "le", le, cumulative[i])
	}
	writeSample(b, name+"_count", "", "", cumulative[len(cumulative)-1])

	b.WriteString(name)
	b.WriteString("_sum ")
	b.WriteString(strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	b.WriteByte('\n')
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, label, value string, n uint64) {
	b.WriteString(name)
	if label != "" {
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString("=\"")
		b.WriteString(value)
		b.WriteString("\"}")
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(n, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}
