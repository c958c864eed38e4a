// Package handler adapts the connector runtime onto echo. Handlers stay
// thin: they capture raw bytes, translate requests, and write responses;
// all pipeline decisions live in the runtime and dispatcher packages.
package handler

import (
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/runtime"
)

// WebhookHandler serves the platform webhook endpoints.
type WebhookHandler struct {
	rt     *runtime.Runtime
	logger *zap.Logger
}

// NewWebhookHandler wraps a runtime for HTTP serving.
func NewWebhookHandler(rt *runtime.Runtime, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{rt: rt, logger: logger}
}

// Register binds the webhook routes to the Echo instance.
func (h *WebhookHandler) Register(e *echo.Echo) {
	path := h.rt.Manifest().WebhookPath
	e.GET(path, h.HandleVerify)
	e.POST(path, h.HandleDelivery)
}

// HandleVerify serves the subscription handshake.
func (h *WebhookHandler) HandleVerify(c echo.Context) error {
	return writeResponse(c, h.rt.HandleGet(translateRequest(c, nil)))
}

// HandleDelivery runs the inbound pipeline. The raw body is read before
// anything else touches the stream; signature verification needs the exact
// bytes Meta signed, not a re-serialization.
func (h *WebhookHandler) HandleDelivery(c echo.Context) error {
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		rawBody = nil // the runtime reports this as an adapter failure
	}
	req := translateRequest(c, rawBody)
	return writeResponse(c, h.rt.HandlePost(c.Request().Context(), req))
}

// translateRequest maps an echo context onto the transport-neutral request.
// Header names are lowercased so the runtime can look them up without
// caring about canonicalization.
func translateRequest(c echo.Context, rawBody []byte) runtime.Request {
	r := c.Request()

	headers := make(map[string][]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = v
	}
	query := make(map[string]string)
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	return runtime.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Query:      query,
		RawBody:    rawBody,
		RemoteAddr: c.RealIP(),
	}
}

// writeResponse renders a runtime response. Text bodies are written
// verbatim with the runtime's content type; everything else is JSON.
func writeResponse(c echo.Context, resp runtime.Response) error {
	for k, v := range resp.Headers {
		c.Response().Header().Set(k, v)
	}
	if resp.ContentType == runtime.ContentTypeText {
		body, _ := resp.Body.(string)
		return c.Blob(resp.Status, resp.ContentType, []byte(body))
	}
	return c.JSON(resp.Status, resp.Body)
}
