package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dispatcher"
	"github.com/chatmesh/connectors/internal/runtime"
)

// StagingTokenHeader authenticates the staging outbound endpoint.
const StagingTokenHeader = "x-staging-token"

// StagingOutboundPath is only registered outside production and only when a
// staging token is configured; otherwise echo's default 404 applies.
const StagingOutboundPath = "/__staging/outbound"

type outboundProcessor interface {
	ProcessBatch(ctx context.Context, correlationID string, intents []connector.OutboundIntent) dispatcher.BatchResult
}

// OutboundHandler exposes the dispatcher for manual testing in staging.
type OutboundHandler struct {
	processor outboundProcessor
	logger    *zap.Logger
	token     string
}

// NewOutboundHandler wires the staging endpoint. token must be non-empty;
// the caller decides whether to register the route at all.
func NewOutboundHandler(proc outboundProcessor, logger *zap.Logger, token string) *OutboundHandler {
	return &OutboundHandler{processor: proc, logger: logger, token: token}
}

// Register binds the staging route to the Echo instance.
func (h *OutboundHandler) Register(e *echo.Echo) {
	e.POST(StagingOutboundPath, h.HandleOutbound)
}

type outboundRequest struct {
	Intents []connector.OutboundIntent `json:"intents"`
}

type outboundBody struct {
	OK            bool                      `json:"ok"`
	CorrelationID string                    `json:"correlationId"`
	Summary       dispatcher.Summary        `json:"summary"`
	Results       []dispatcher.IntentResult `json:"results,omitempty"`
}

// HandleOutbound authenticates the caller and runs one outbound batch.
func (h *OutboundHandler) HandleOutbound(c echo.Context) error {
	correlationID := c.Request().Header.Get(runtime.CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	c.Response().Header().Set(runtime.CorrelationHeader, correlationID)

	token := c.Request().Header.Get(StagingTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		h.logger.Warn("Staging outbound request rejected, bad token",
			zap.String("correlationId", correlationID))
		return c.JSON(http.StatusUnauthorized, runtime.ErrorBody{
			Code:          runtime.CodeUnauthorized,
			Message:       "invalid staging token",
			CorrelationID: correlationID,
		})
	}

	var req outboundRequest
	if err := c.Bind(&req); err != nil || len(req.Intents) == 0 {
		return c.JSON(http.StatusBadRequest, runtime.ErrorBody{
			Code:          runtime.CodeWebhookValidationFailed,
			Message:       "body must carry a non-empty intents list",
			CorrelationID: correlationID,
		})
	}

	res := h.processor.ProcessBatch(c.Request().Context(), correlationID, req.Intents)
	return c.JSON(http.StatusOK, outboundBody{
		OK:            true,
		CorrelationID: correlationID,
		Summary:       res.Summary,
		Results:       res.Results,
	})
}
