// Package dispatcher implements the outbound batch processor: intent
// validation, dedupe-before-send, provider dispatch, and masked result
// accounting. It owns no transport; a Sender is injected.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dedupe"
	"github.com/chatmesh/connectors/internal/masking"
	"github.com/chatmesh/connectors/internal/telemetry"
)

// Statuses for one processed intent.
const (
	StatusSent    = "sent"
	StatusDeduped = "deduped"
	StatusFailed  = "failed"
)

// Error codes attached to intent results.
const (
	CodeDedupeErrorBlocked = "dedupe_error_blocked"
	CodeDedupeErrorAllowed = "dedupe_error_allowed"
	CodeSendFailed         = "send_failed"
)

// SendResult reports a successful provider send.
type SendResult struct {
	MessageID      string
	UpstreamStatus int
}

// Sender delivers one validated intent to the provider. Retry policy lives
// behind this interface; the processor itself never retries, because the
// dedupe key is already marked before the first attempt.
type Sender interface {
	Send(ctx context.Context, intent connector.OutboundIntent) (SendResult, error)
}

// UpstreamError is implemented by send errors that expose the provider's
// HTTP status.
type UpstreamError interface {
	error
	UpstreamStatus() int
}

// IntentResult is the per-intent outcome, in input order.
type IntentResult struct {
	IntentID          string  `json:"intentId"`
	DedupeKey         string  `json:"dedupeKey,omitempty"`
	Status            string  `json:"status"`
	Code              string  `json:"code,omitempty"`
	Error             string  `json:"error,omitempty"`
	UpstreamStatus    int     `json:"upstreamStatus,omitempty"`
	ProviderMessageID string  `json:"providerMessageId,omitempty"`
	LatencyMs         float64 `json:"latencyMs"`
}

// Summary totals one outbound batch.
type Summary struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Deduped int `json:"deduped"`
	Failed  int `json:"failed"`
}

// BatchResult is what ProcessBatch returns to its caller (the staging
// endpoint and the intent consumer).
type BatchResult struct {
	Summary Summary        `json:"summary"`
	Results []IntentResult `json:"results"`
}

// Config wires a Processor.
type Config struct {
	Connector string
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics
	Store     dedupe.Store
	Sender    Sender

	// FailMode routes dedupe store errors. Outbound defaults to open:
	// suppressing a send is safer than double-messaging a user.
	FailMode dedupe.FailMode
	TTL      time.Duration

	// PageID scopes derived comment-reply keys.
	PageID string
}

// Processor applies exactly-once dedupe ahead of provider side effects for
// batches of outbound intents.
type Processor struct {
	connector string
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	store     dedupe.Store
	sender    Sender
	failMode  dedupe.FailMode
	ttl       time.Duration
	pageID    string
}

// New validates the wiring and returns a ready Processor.
func New(cfg Config) (*Processor, error) {
	switch {
	case cfg.Connector == "":
		return nil, fmt.Errorf("dispatcher: connector id required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("dispatcher: logger required")
	case cfg.Metrics == nil:
		return nil, fmt.Errorf("dispatcher: metrics required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("dispatcher: dedupe store required")
	case cfg.Sender == nil:
		return nil, fmt.Errorf("dispatcher: sender required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Processor{
		connector: cfg.Connector,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		store:     cfg.Store,
		sender:    cfg.Sender,
		failMode:  cfg.FailMode,
		ttl:       cfg.TTL,
		pageID:    cfg.PageID,
	}, nil
}

// ProcessBatch handles intents sequentially, preserving input order in the
// results. It never returns an error: every outcome is folded into the
// per-intent records.
func (p *Processor) ProcessBatch(ctx context.Context, correlationID string, intents []connector.OutboundIntent) BatchResult {
	log := p.logger.With(zap.String("correlationId", correlationID))

	out := BatchResult{Results: make([]IntentResult, 0, len(intents))}
	out.Summary.Total = len(intents)
	for _, in := range intents {
		r := p.process(ctx, in, log)
		switch r.Status {
		case StatusSent:
			out.Summary.Sent++
		case StatusDeduped:
			out.Summary.Deduped++
		default:
			out.Summary.Failed++
		}
		out.Results = append(out.Results, r)
	}

	log.Info("Outbound batch complete",
		zap.Int("total", out.Summary.Total),
		zap.Int("sent", out.Summary.Sent),
		zap.Int("deduped", out.Summary.Deduped),
		zap.Int("failed", out.Summary.Failed),
	)
	return out
}

// process runs one intent through validate, dedupe, send. The dedupe key is
// marked before the first send attempt, so a failed send stays suppressed
// on upstream replays.
func (p *Processor) process(ctx context.Context, in connector.OutboundIntent, log *zap.Logger) (res IntentResult) {
	started := time.Now()
	res = IntentResult{IntentID: in.ID, Status: StatusFailed}
	labels := telemetry.IntentLabels{
		Connector:   p.connector,
		Provider:    in.Provider,
		TenantID:    in.TenantID,
		PayloadType: in.Payload.Type,
	}
	defer func() {
		res.LatencyMs = float64(time.Since(started).Microseconds()) / 1000.0
		p.metrics.Histogram(ctx, telemetry.MetricIntentSendLatency, res.LatencyMs, labels)
	}()

	if err := in.Validate(); err != nil {
		log.Warn("Intent validation failed",
			zap.String("intentId", in.ID),
			zap.String("error", masking.Error(err)),
		)
		p.metrics.Counter(ctx, telemetry.MetricIntentFailed, 1, labels)
		res.Code = CodeSendFailed
		res.Error = masking.Error(err)
		return res
	}

	res.DedupeKey = in.DeriveDedupeKey(p.pageID)
	ilog := log.With(
		zap.String("intentId", in.ID),
		zap.String("dedupeKey", res.DedupeKey),
		zap.String("tenantId", in.TenantID),
	)

	seen, err := p.store.CheckAndMark(ctx, res.DedupeKey, p.ttl)
	duplicate, storeErr := dedupe.Resolve(seen, err, p.failMode)
	var carryCode string
	if storeErr != nil {
		ilog.Error("Dedupe store error",
			zap.String("failMode", p.failMode.String()),
			zap.String("error", masking.Error(storeErr)),
		)
		if duplicate {
			ilog.Warn("Intent blocked, dedupe state unknown")
			p.metrics.Counter(ctx, telemetry.MetricIntentDeduped, 1, labels)
			res.Status = StatusDeduped
			res.Code = CodeDedupeErrorBlocked
			return res
		}
		carryCode = CodeDedupeErrorAllowed
	} else if duplicate {
		ilog.Info("Duplicate intent suppressed")
		p.metrics.Counter(ctx, telemetry.MetricIntentDeduped, 1, labels)
		res.Status = StatusDeduped
		return res
	}

	sendRes, sendErr := p.sender.Send(ctx, in)
	if sendErr != nil {
		var ue UpstreamError
		if errors.As(sendErr, &ue) {
			res.UpstreamStatus = ue.UpstreamStatus()
		}
		res.Code = CodeSendFailed
		res.Error = masking.Error(sendErr)
		ilog.Error("Intent send failed",
			zap.String("recipient", masking.Recipient(in.Recipient)),
			zap.Int("upstreamStatus", res.UpstreamStatus),
			zap.String("error", res.Error),
		)
		p.metrics.Counter(ctx, telemetry.MetricIntentFailed, 1, labels)
		return res
	}

	res.Status = StatusSent
	res.Code = carryCode
	res.ProviderMessageID = sendRes.MessageID
	res.UpstreamStatus = sendRes.UpstreamStatus
	ilog.Info("Intent sent",
		zap.String("recipient", masking.Recipient(in.Recipient)),
		zap.Int("upstreamStatus", sendRes.UpstreamStatus),
		zap.String("providerMessageId", sendRes.MessageID),
	)
	p.metrics.Counter(ctx, telemetry.MetricIntentSent, 1, labels)
	return res
}
