// Package consumer pulls outbound intent batches from JetStream and feeds
// them to the dispatcher. Send failures are final: the dedupe mark taken
// before the first attempt makes redeliveries no-ops, so batches are acked
// after processing regardless of per-intent outcomes.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dispatcher"
	"github.com/chatmesh/connectors/internal/natsclient"
)

const (
	fetchBatch = 10
	fetchWait  = 5 * time.Second
)

var errMalformed = errors.New("malformed intent batch")

// IntentBatch is the queue envelope. The envelope itself follows messaging
// conventions (snake_case); the embedded intents keep their canonical API
// shape so producers and the staging endpoint share one document format.
type IntentBatch struct {
	BatchID       string                     `json:"batch_id"`
	CorrelationID string                     `json:"correlation_id"`
	Intents       []connector.OutboundIntent `json:"intents"`
}

// BatchProcessor is the slice of the dispatcher the consumer uses.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, correlationID string, intents []connector.OutboundIntent) dispatcher.BatchResult
}

// IntentConsumer owns one durable pull subscription per connector binary.
type IntentConsumer struct {
	nats      *natsclient.Client
	processor BatchProcessor
	provider  string
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewIntentConsumer binds a consumer to the given NATS client and processor.
// provider selects the subject partition (outbound.intents.<provider>).
func NewIntentConsumer(n *natsclient.Client, proc BatchProcessor, provider string, l *zap.Logger) *IntentConsumer {
	return &IntentConsumer{
		nats:      n,
		processor: proc,
		provider:  provider,
		logger:    l,
		tracer:    otel.Tracer("intent-consumer"),
	}
}

// Start initializes the durable pull subscription and begins processing in
// a background goroutine until ctx is cancelled.
func (c *IntentConsumer) Start(ctx context.Context) error {
	durable := c.provider + "-connector-outbound"
	sub, err := c.nats.JS.PullSubscribe(
		natsclient.IntentSubject(c.provider),
		durable,
		nats.BindStream(natsclient.StreamOutboundIntents),
	)
	if err != nil {
		return err
	}

	c.logger.Info("Intent consumer initialized",
		zap.String("stream", natsclient.StreamOutboundIntents),
		zap.String("subject", natsclient.IntentSubject(c.provider)),
		zap.String("durable", durable),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchWait))
				if err != nil {
					continue // fetch timeout, poll again
				}
				for _, msg := range msgs {
					c.processMessage(ctx, msg)
				}
			}
		}
	}()

	return nil
}

// processMessage maps processing outcomes onto JetStream acknowledgments.
// The separation lets processBatch be tested without a live NATS server.
func (c *IntentConsumer) processMessage(ctx context.Context, msg *nats.Msg) {
	if err := c.processBatch(ctx, msg.Data); err != nil {
		if errors.Is(err, errMalformed) {
			_ = msg.Term() // poison pill, never redeliver
			return
		}
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// processBatch decodes one envelope and runs it through the dispatcher.
func (c *IntentConsumer) processBatch(ctx context.Context, data []byte) error {
	ctx, span := c.tracer.Start(ctx, "consumer.ProcessIntentBatch")
	defer span.End()

	var batch IntentBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		c.logger.Error("Malformed intent batch", zap.Error(err))
		return errMalformed
	}

	correlationID := batch.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	res := c.processor.ProcessBatch(ctx, correlationID, batch.Intents)
	c.logger.Info("Intent batch consumed",
		zap.String("batchId", batch.BatchID),
		zap.String("correlationId", correlationID),
		zap.Int("total", res.Summary.Total),
		zap.Int("sent", res.Summary.Sent),
		zap.Int("deduped", res.Summary.Deduped),
		zap.Int("failed", res.Summary.Failed),
	)
	return nil
}
