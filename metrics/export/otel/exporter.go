package otel

import (
	"context"
	"errors"
	"fmt"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection. *memberAuth.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() memberAuth.MetricsSnapshot
	AuditDropped() uint64
}

type series struct {
	id         memberAuth.MetricID
	instrument metric.Int64ObservableCounter
	attrs      metric.ObserveOption
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       Source
	registration metric.Registration

	series       []series
	auditDropped metric.Int64ObservableCounter

	buckets    metric.Int64ObservableGauge
	bucketAttr [len(internaldefs.HistogramBounds)]metric.ObserveOption
	count      metric.Int64ObservableCounter
	sum        metric.Float64ObservableCounter
}

// New registers the memberAuth instruments on meter.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	families := make(map[string]metric.Int64ObservableCounter, len(internaldefs.FamilyOrder))
	for _, fam := range internaldefs.FamilyOrder {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", fam.Name, err)
		}
		families[fam.Name] = ins
		observables = append(observables, ins)
	}
	for _, def := range internaldefs.CounterDefs {
		e.series = append(e.series, series{
			id:         def.ID,
			instrument: families[def.Family.Name],
			attrs:      metric.WithAttributeSet(attribute.NewSet(attribute.String(def.Family.Label, def.Value))),
		})
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDropped.Name,
		metric.WithDescription(internaldefs.AuditDropped.Help))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDropped.Name, err)
	}
	observables = append(observables, e.auditDropped)

	name := internaldefs.ValidateLatency.Name
	e.buckets, err = meter.Int64ObservableGauge(name+"_bucket",
		metric.WithDescription("Cumulative validations at or under the le bound, in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s_bucket: %w", name, err)
	}
	for i, le := range internaldefs.HistogramBounds {
		e.bucketAttr[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	e.count, err = meter.Int64ObservableCounter(name+"_count", metric.WithDescription(internaldefs.ValidateLatency.Help))
	if err != nil {
		return nil, fmt.Errorf("create counter %s_count: %w", name, err)
	}
	e.sum, err = meter.Float64ObservableCounter(name+"_sum",
		metric.WithDescription(internaldefs.ValidateLatency.Help),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s_sum: %w", name, err)
	}
	observables = append(observables, e.buckets, e.count, e.sum)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, s := range e.series {
		o.ObserveInt64(s.instrument, int64(snapshot.Counters[s.id]), s.attrs)
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	id := internaldefs.ValidateLatency.ID
	raw, ok := snapshot.Histograms[id]
	if !ok {
		return nil
	}
	cumulative := internaldefs.CumulativeBuckets(raw)
	for i := range cumulative {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), e.bucketAttr[i])
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	o.ObserveFloat64(e.sum, snapshot.LatencySums[id].Seconds())
	return nil
}

// Close unregisters the callback. Instruments stay registered on the
// meter but report nothing.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
