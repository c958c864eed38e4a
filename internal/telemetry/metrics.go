package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Metric names emitted by the connectors.
const (
	MetricWebhookReceived   = "webhook_received_total"
	MetricEventProcessed    = "event_processed_total"
	MetricEventDeduped      = "event_deduped_total"
	MetricEventFailed       = "event_failed_total"
	MetricEventBatchSummary = "event_batch_summary"
	MetricHandlerLatency    = "handler_latency_ms"
	MetricIntentSent        = "intent_sent_total"
	MetricIntentDeduped     = "intent_deduped_total"
	MetricIntentFailed      = "intent_failed_total"
	MetricIntentSendLatency = "intent_send_latency_ms"
)

// Labels is a closed label set for one metric family. Closed structs keep
// label cardinality under control; free-form fields are not accepted.
type Labels interface {
	Fields() []zap.Field
}

// EventLabels label inbound webhook and event metrics.
type EventLabels struct {
	Connector  string
	Capability string
	TenantID   string
}

// Fields renders the non-empty labels.
func (l EventLabels) Fields() []zap.Field {
	out := make([]zap.Field, 0, 3)
	if l.Connector != "" {
		out = append(out, zap.String("connector", l.Connector))
	}
	if l.Capability != "" {
		out = append(out, zap.String("capability", l.Capability))
	}
	if l.TenantID != "" {
		out = append(out, zap.String("tenantId", l.TenantID))
	}
	return out
}

// IntentLabels label outbound send metrics.
type IntentLabels struct {
	Connector   string
	Provider    string
	TenantID    string
	PayloadType string
}

// Fields renders the non-empty labels.
func (l IntentLabels) Fields() []zap.Field {
	out := make([]zap.Field, 0, 4)
	if l.Connector != "" {
		out = append(out, zap.String("connector", l.Connector))
	}
	if l.Provider != "" {
		out = append(out, zap.String("provider", l.Provider))
	}
	if l.TenantID != "" {
		out = append(out, zap.String("tenantId", l.TenantID))
	}
	if l.PayloadType != "" {
		out = append(out, zap.String("payloadType", l.PayloadType))
	}
	return out
}

// Metrics emits metric records as structured INFO logs and mirrors them to
// OpenTelemetry instruments when a meter is configured. The log records are
// the contract (scrapers parse them); the OTel mirror is best-effort.
type Metrics struct {
	logger *zap.Logger
	meter  metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

// NewMetrics builds an emitter. meter may be nil, leaving log records only.
func NewMetrics(logger *zap.Logger, meter metric.Meter) *Metrics {
	return &Metrics{
		logger:     logger,
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// Counter adds value to the named counter.
func (m *Metrics) Counter(ctx context.Context, name string, value float64, labels Labels) {
	fields := labels.Fields()
	m.logger.Info("metric", append([]zap.Field{
		zap.String("metric", name),
		zap.String("metricType", "counter"),
		zap.Float64("value", value),
	}, fields...)...)

	if m.meter == nil {
		return
	}
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.Add(ctx, value, metric.WithAttributes(attrsFromFields(fields)...))
}

// Histogram records value (milliseconds for latency metrics) in the named
// distribution.
func (m *Metrics) Histogram(ctx context.Context, name string, value float64, labels Labels) {
	fields := labels.Fields()
	m.logger.Info("metric", append([]zap.Field{
		zap.String("metric", name),
		zap.String("metricType", "histogram"),
		zap.Float64("value", value),
	}, fields...)...)

	if m.meter == nil {
		return
	}
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.histograms[name] = h
	}
	m.mu.Unlock()
	h.Record(ctx, value, metric.WithAttributes(attrsFromFields(fields)...))
}

// Summary emits a summary-type record, used once per webhook batch. There
// is no OTel summary instrument, so this stays a log record.
func (m *Metrics) Summary(_ context.Context, name string, value float64, labels Labels) {
	m.logger.Info("metric", append([]zap.Field{
		zap.String("metric", name),
		zap.String("metricType", "summary"),
		zap.Float64("value", value),
	}, labels.Fields()...)...)
}

func attrsFromFields(fields []zap.Field) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		if f.Type == zapcore.StringType {
			out = append(out, attribute.String(f.Key, f.String))
		}
	}
	return out
}
