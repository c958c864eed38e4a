// Package runtime implements the connector inbound pipeline: handshake
// verification, signature checking, parsing, rate limiting, and sequential
// per-event dedupe and dispatch. It is HTTP-framework-free; the handler
// package adapts it onto echo.
package runtime

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dedupe"
	"github.com/chatmesh/connectors/internal/masking"
	"github.com/chatmesh/connectors/internal/ratelimit"
	"github.com/chatmesh/connectors/internal/signature"
	"github.com/chatmesh/connectors/internal/telemetry"
)

// Parser turns one raw webhook delivery into typed events, preserving the
// payload order. A nil error with an empty slice means a structurally valid
// notification that carries nothing to process; the pipeline rejects those
// as validation failures.
type Parser interface {
	Parse(req Request) ([]connector.ParsedEvent, error)
}

// Config wires a Runtime. Manifest, Logger, Metrics, Parser, Registry,
// Store, and Verifier are required; Limiter and VerifyToken are optional.
type Config struct {
	Manifest connector.Manifest
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Parser   Parser
	Registry *connector.Registry
	Store    dedupe.Store
	Verifier *signature.Verifier
	Limiter  ratelimit.Limiter

	VerifyToken string
	DedupeTTL   time.Duration
}

// Runtime executes the inbound pipeline for one connector.
type Runtime struct {
	manifest    connector.Manifest
	logger      *zap.Logger
	metrics     *telemetry.Metrics
	parser      Parser
	registry    *connector.Registry
	store       dedupe.Store
	verifier    *signature.Verifier
	limiter     ratelimit.Limiter
	verifyToken string
	dedupeTTL   time.Duration
	failMode    dedupe.FailMode
}

// New validates the wiring and returns a ready Runtime.
func New(cfg Config) (*Runtime, error) {
	switch {
	case cfg.Manifest.ID == "":
		return nil, fmt.Errorf("runtime: manifest id required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("runtime: logger required")
	case cfg.Metrics == nil:
		return nil, fmt.Errorf("runtime: metrics required")
	case cfg.Parser == nil:
		return nil, fmt.Errorf("runtime: parser required")
	case cfg.Registry == nil:
		return nil, fmt.Errorf("runtime: registry required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("runtime: dedupe store required")
	case cfg.Verifier == nil:
		return nil, fmt.Errorf("runtime: signature verifier required")
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 5 * time.Minute
	}
	if !cfg.Verifier.Enabled() {
		cfg.Logger.Warn("Signature verification disabled, accepting unsigned webhooks")
	}
	return &Runtime{
		manifest:    cfg.Manifest,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		parser:      cfg.Parser,
		registry:    cfg.Registry,
		store:       cfg.Store,
		verifier:    cfg.Verifier,
		limiter:     cfg.Limiter,
		verifyToken: cfg.VerifyToken,
		dedupeTTL:   cfg.DedupeTTL,
		// Inbound routes store errors fail-closed: losing a delivery is
		// worse than occasionally processing one twice.
		failMode: dedupe.FailModeClosed,
	}, nil
}

// Manifest returns the connector manifest the runtime serves.
func (rt *Runtime) Manifest() connector.Manifest { return rt.manifest }

// HandleGet serves the Meta subscription handshake: hub.mode must be
// "subscribe" and hub.verify_token must match, in which case hub.challenge
// is echoed back as text/plain.
func (rt *Runtime) HandleGet(req Request) Response {
	correlationID := uuid.NewString()
	log := rt.logger.With(zap.String("correlationId", correlationID))

	if rt.verifyToken == "" {
		log.Warn("Handshake received but verify token not configured")
		return errorResponse(503, CodeServiceUnavailable, "webhook verification not configured", correlationID)
	}

	mode := req.Query["hub.mode"]
	token := req.Query["hub.verify_token"]
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(rt.verifyToken)) != 1 {
		log.Warn("Webhook handshake rejected", zap.String("mode", mode))
		return errorResponse(403, CodeForbidden, "verification failed", correlationID)
	}

	log.Info("Webhook handshake verified")
	return Response{
		Status:      200,
		ContentType: ContentTypeText,
		Headers:     map[string]string{CorrelationHeader: correlationID},
		Body:        req.Query["hub.challenge"],
	}
}

// HandlePost runs the delivery pipeline. Order matters: correlation, raw
// body presence, signature, parse, rate limit, then sequential dispatch.
// Structurally valid batches always answer 200 so the provider does not
// retry work the connector has accepted.
func (rt *Runtime) HandlePost(ctx context.Context, req Request) Response {
	correlationID := req.Header(CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := rt.logger.With(zap.String("correlationId", correlationID))

	if req.RawBody == nil {
		log.Error("Raw body missing, adapter failed to capture request bytes")
		return errorResponse(500, CodeInternalError, "raw body unavailable", correlationID)
	}

	if res := rt.verifier.Verify(req.RawBody, req.Header(signature.Header)); !res.Valid {
		if res.Code == signature.CodeMissingRawBody {
			log.Error("Signature verifier reported missing raw body")
			return errorResponse(500, CodeInternalError, "raw body unavailable", correlationID)
		}
		log.Warn("Signature verification failed", zap.String("code", res.Code))
		msg := "Invalid signature"
		if res.Code == signature.CodeMissingSignature {
			msg = "Missing signature"
		}
		return errorResponse(401, CodeUnauthorized, msg, correlationID)
	}

	events, err := rt.parser.Parse(req)
	if err != nil {
		log.Warn("Payload validation failed", zap.String("error", masking.Error(err)))
		return errorResponse(400, CodeWebhookValidationFailed, "payload validation failed", correlationID)
	}
	if len(events) == 0 {
		log.Warn("Notification carried no processable events")
		return errorResponse(400, CodeWebhookValidationFailed, "no processable events", correlationID)
	}

	// A correlation id carried inside the payload outranks the header
	// fallback; the first event decides for the whole batch.
	if events[0].CorrelationID != "" {
		correlationID = events[0].CorrelationID
		log = rt.logger.With(zap.String("correlationId", correlationID))
	}

	if rt.limiter != nil {
		key := rt.manifest.ID + ":" + events[0].ScopeID
		decision, err := rt.limiter.Consume(ctx, key, len(events))
		if err != nil {
			log.Warn("Rate limiter unavailable, allowing batch", zap.String("error", masking.Error(err)))
		} else if !decision.Allowed {
			log.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.Int("cost", len(events)),
				zap.Duration("retryAfter", decision.RetryAfter),
			)
			resp := errorResponse(429, CodeRateLimitExceeded, "rate limit exceeded", correlationID)
			if decision.RetryAfter > 0 {
				resp.Headers["Retry-After"] = strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds())))
			}
			return resp
		}
	}

	var summary BatchSummary
	summary.Total = len(events)
	results := make([]ItemResult, 0, len(events))
	for _, ev := range events {
		r := rt.dispatch(ctx, ev, correlationID, log)
		switch {
		case r.Deduped:
			summary.Deduped++
		case r.OK:
			summary.Processed++
		default:
			summary.Failed++
		}
		results = append(results, r)
	}

	fullyDeduped := summary.Total > 0 && summary.Deduped == summary.Total &&
		summary.Processed == 0 && summary.Failed == 0
	log.Info("Webhook batch complete",
		zap.Int("total", summary.Total),
		zap.Int("processed", summary.Processed),
		zap.Int("deduped", summary.Deduped),
		zap.Int("failed", summary.Failed),
		zap.Bool("fullyDeduped", fullyDeduped),
	)
	rt.metrics.Summary(ctx, telemetry.MetricEventBatchSummary, float64(summary.Total),
		telemetry.EventLabels{Connector: rt.manifest.ID})

	return Response{
		Status:      200,
		ContentType: ContentTypeJSON,
		Headers:     map[string]string{CorrelationHeader: correlationID},
		Body: BatchBody{
			OK:            true,
			Connector:     rt.manifest.ID,
			CorrelationID: correlationID,
			FullyDeduped:  fullyDeduped,
			Summary:       summary,
			Results:       results,
		},
	}
}

// dispatch dedupes and runs one event. Handler outcomes never escape as
// errors; they are folded into the item result. Latency is recorded on
// every outcome, dedupe hits included.
func (rt *Runtime) dispatch(ctx context.Context, ev connector.ParsedEvent, correlationID string, log *zap.Logger) (res ItemResult) {
	started := time.Now()
	res = ItemResult{Capability: ev.Capability, DedupeKey: ev.DedupeKey, CorrelationID: correlationID}
	labels := telemetry.EventLabels{Connector: rt.manifest.ID, Capability: ev.Capability, TenantID: ev.TenantID}
	defer func() {
		res.LatencyMs = float64(time.Since(started).Microseconds()) / 1000.0
		rt.metrics.Histogram(ctx, telemetry.MetricHandlerLatency, res.LatencyMs, labels)
	}()

	elog := log.With(
		zap.String("capability", ev.Capability),
		zap.String("dedupeKey", ev.DedupeKey),
	)
	if ev.TenantID != "" {
		elog = elog.With(zap.String("tenantId", ev.TenantID))
	}

	rt.metrics.Counter(ctx, telemetry.MetricWebhookReceived, 1, labels)

	seen, err := rt.store.CheckAndMark(ctx, ev.DedupeKey, rt.dedupeTTL)
	duplicate, storeErr := dedupe.Resolve(seen, err, rt.failMode)
	if storeErr != nil {
		elog.Error("Dedupe store error",
			zap.String("failMode", rt.failMode.String()),
			zap.String("error", masking.Error(storeErr)),
		)
	}
	if duplicate {
		elog.Info("Duplicate event skipped")
		rt.metrics.Counter(ctx, telemetry.MetricEventDeduped, 1, labels)
		res.OK = true
		res.Deduped = true
		return res
	}

	h, ok := rt.registry.Lookup(ev.Capability)
	if !ok {
		elog.Warn("No handler registered for capability")
		res.Code = CodeNoHandler
		return res
	}

	hErr := h(ctx, ev.Payload, connector.EventContext{
		Connector:     rt.manifest.ID,
		Capability:    ev.Capability,
		CorrelationID: correlationID,
		TenantID:      ev.TenantID,
		DedupeKey:     ev.DedupeKey,
		Logger:        elog,
	})
	if hErr != nil {
		elog.Error("Handler execution failed", zap.String("error", masking.Error(hErr)))
		rt.metrics.Counter(ctx, telemetry.MetricEventFailed, 1, labels)
		res.Code = CodeHandlerFailed
		return res
	}

	elog.Info("Event processed successfully")
	rt.metrics.Counter(ctx, telemetry.MetricEventProcessed, 1, labels)
	res.OK = true
	return res
}
