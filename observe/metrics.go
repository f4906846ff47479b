package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Collection outcomes.
const (
	OutcomeComplete = "complete" // every expected peer answered
	OutcomePartial  = "partial"  // deadline or shutdown resolved the request early
	OutcomeFailed   = "failed"   // the broadcast itself failed
)

// CollectionOutcome describes one finished cross-context collection.
type CollectionOutcome struct {
	Outcome  string
	Expected int
	Received int
	Duration time.Duration
}

// VerificationOutcome describes one certificate revocation lookup.
type VerificationOutcome struct {
	Method   string
	Status   string
	Cached   bool
	Duration time.Duration
}

// Metrics records health collection and revocation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordCollection(ctx context.Context, o CollectionOutcome)
	RecordLateResponse(ctx context.Context)
	RecordVerification(ctx context.Context, o VerificationOutcome)
}

type metricsImpl struct {
	collections     metric.Int64Counter
	collectDuration metric.Float64Histogram
	missingReplies  metric.Int64Counter
	lateResponses   metric.Int64Counter
	verifications   metric.Int64Counter
	verifyDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.collections, err = meter.Int64Counter(
		"workerhealth.collect.total",
		metric.WithDescription("Cross-context status collections by outcome"),
		metric.WithUnit("{collection}"),
	); err != nil {
		return nil, err
	}

	if m.collectDuration, err = meter.Float64Histogram(
		"workerhealth.collect.duration_ms",
		metric.WithDescription("Time from broadcast to resolution of a collection"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.missingReplies, err = meter.Int64Counter(
		"workerhealth.collect.missing_responses",
		metric.WithDescription("Expected responses that never arrived before resolution"),
		metric.WithUnit("{response}"),
	); err != nil {
		return nil, err
	}

	if m.lateResponses, err = meter.Int64Counter(
		"workerhealth.collect.late_responses",
		metric.WithDescription("Responses dropped because their request was already resolved"),
		metric.WithUnit("{response}"),
	); err != nil {
		return nil, err
	}

	if m.verifications, err = meter.Int64Counter(
		"workerhealth.revocation.checks",
		metric.WithDescription("Certificate revocation lookups by method, status and cache hit"),
		metric.WithUnit("{check}"),
	); err != nil {
		return nil, err
	}

	if m.verifyDuration, err = meter.Float64Histogram(
		"workerhealth.revocation.duration_ms",
		metric.WithDescription("Duration of uncached revocation lookups"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordCollection(ctx context.Context, o CollectionOutcome) {
	opt := metric.WithAttributes(attribute.String("outcome", o.Outcome))

	m.collections.Add(ctx, 1, opt)
	m.collectDuration.Record(ctx, float64(o.Duration.Microseconds())/1000, opt)
	if missing := o.Expected - o.Received; missing > 0 && o.Outcome != OutcomeFailed {
		m.missingReplies.Add(ctx, int64(missing))
	}
}

func (m *metricsImpl) RecordLateResponse(ctx context.Context) {
	m.lateResponses.Add(ctx, 1)
}

func (m *metricsImpl) RecordVerification(ctx context.Context, o VerificationOutcome) {
	opt := metric.WithAttributes(
		attribute.String("method", o.Method),
		attribute.String("status", o.Status),
		attribute.Bool("cached", o.Cached),
	)

	m.verifications.Add(ctx, 1, opt)
	if !o.Cached {
		m.verifyDuration.Record(ctx, float64(o.Duration.Microseconds())/1000,
			metric.WithAttributes(attribute.String("method", o.Method)))
	}
}

type noopMetrics struct{}

// NewNoopMetrics returns metrics that record nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordCollection(context.Context, CollectionOutcome)     {}
func (noopMetrics) RecordLateResponse(context.Context)                      {}
func (noopMetrics) RecordVerification(context.Context, VerificationOutcome) {}
