package observer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"tunecore/internal/search/strategy"
)

// OTelObserver emits one counter increment and one span per iteration, and
// a search-scoped span covering begin_search..end_search. It is the
// observability-stack sink (as opposed to ProgressPrinter's human-readable
// lines or Recorder's durable trace), meant to run alongside either.
type OTelObserver struct {
	tracer       trace.Tracer
	evalCtr      metric.Int64Counter
	strategyName string

	span trace.Span
	ctx  context.Context
}

// NewOTelObserver builds an observer against the process-wide otel
// providers (set up by the host's OTel init). strategyName labels every metric and
// span so multiple concurrent strategies are distinguishable.
func NewOTelObserver(strategyName string) (*OTelObserver, error) {
	tracer := otel.Tracer("tunecore/search")
	meter := otel.Meter("tunecore/search")
	ctr, err := meter.Int64Counter("tunecore.search.evaluations",
		metric.WithDescription("number of objective evaluations performed by a search strategy"))
	if err != nil {
		return nil, err
	}
	return &OTelObserver{tracer: tracer, evalCtr: ctr, strategyName: strategyName}, nil
}

func (o *OTelObserver) BeginSearch() {
	o.ctx, o.span = o.tracer.Start(context.Background(), "search."+o.strategyName)
}

func (o *OTelObserver) BeginIter(x strategy.ParameterVector) {
	if o.ctx == nil {
		return
	}
	_, span := o.tracer.Start(o.ctx, "search.evaluate")
	span.SetAttributes(attribute.Int("tunecore.inputs.count", len(x)))
	span.End()
}

func (o *OTelObserver) EndIter(x strategy.ParameterVector, m strategy.MeasurementVector) {
	attrs := []attribute.KeyValue{attribute.String("tunecore.strategy", o.strategyName)}
	o.evalCtr.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (o *OTelObserver) EndSearch(x strategy.ParameterVector, m strategy.MeasurementVector) {
	if o.span == nil {
		return
	}
	if len(m) > 0 {
		o.span.SetAttributes(attribute.Float64("tunecore.result.primary", m.Primary()))
	}
	o.span.End()
	o.span = nil
	o.ctx = nil
}

var _ strategy.Observer = (*OTelObserver)(nil)
