package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dedupe"
	"github.com/chatmesh/connectors/internal/handler"
	"github.com/chatmesh/connectors/internal/platform/whatsapp"
	"github.com/chatmesh/connectors/internal/runtime"
	"github.com/chatmesh/connectors/internal/signature"
	"github.com/chatmesh/connectors/internal/telemetry"
)

const testSecret = "test-webhook-secret"

const goldenNotification = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA_ID_001",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PHONE_ID_001"},
        "messages": [{
          "id": "wamid.fake.text.001",
          "from": "15551234567",
          "timestamp": "1724580000",
          "type": "text",
          "text": {"body": "hello there"}
        }]
      }
    }]
  }]
}`

func newTestWebhookHandler(t *testing.T) *handler.WebhookHandler {
	t.Helper()
	logger := zaptest.NewLogger(t)

	reg := connector.NewRegistry()
	reg.Register(connector.CapabilityInboundMessages,
		func(context.Context, any, connector.EventContext) error { return nil })
	reg.Register(connector.CapabilityMessageStatusUpdates,
		func(context.Context, any, connector.EventContext) error { return nil })

	rt, err := runtime.New(runtime.Config{
		Manifest:    whatsapp.Manifest(),
		Logger:      logger,
		Metrics:     telemetry.NewMetrics(logger, nil),
		Parser:      whatsapp.NewParser(nil),
		Registry:    reg,
		Store:       dedupe.NewMemoryStore(),
		Verifier:    signature.NewVerifier(testSecret),
		VerifyToken: "challenge-token-123",
	})
	require.NoError(t, err)
	return handler.NewWebhookHandler(rt, logger)
}

func deliver(t *testing.T, wh *handler.WebhookHandler, body string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sign {
		req.Header.Set("X-Hub-Signature-256", signature.Sign(testSecret, []byte(body)))
	}
	rec := httptest.NewRecorder()
	require.NoError(t, wh.HandleDelivery(e.NewContext(req, rec)))
	return rec
}

func TestHandleVerify_EchoesChallenge(t *testing.T) {
	wh := newTestWebhookHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=challenge-token-123&hub.challenge=123456", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, wh.HandleVerify(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
}

func TestHandleVerify_WrongTokenForbidden(t *testing.T) {
	wh := newTestWebhookHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=123456", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, wh.HandleVerify(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleDelivery_SignedNotificationProcessed(t *testing.T) {
	wh := newTestWebhookHandler(t)

	rec := deliver(t, wh, goldenNotification, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body runtime.BatchBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, runtime.BatchSummary{Total: 1, Processed: 1}, body.Summary)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "whatsapp:PHONE_ID_001:msg:wamid.fake.text.001", body.Results[0].DedupeKey)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
}

func TestHandleDelivery_ReplayFullyDeduped(t *testing.T) {
	wh := newTestWebhookHandler(t)

	first := deliver(t, wh, goldenNotification, true)
	require.Equal(t, http.StatusOK, first.Code)

	second := deliver(t, wh, goldenNotification, true)
	require.Equal(t, http.StatusOK, second.Code)

	var body runtime.BatchBody
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.True(t, body.FullyDeduped)
	assert.Equal(t, runtime.BatchSummary{Total: 1, Deduped: 1}, body.Summary)
}

func TestHandleDelivery_UnsignedRejected(t *testing.T) {
	wh := newTestWebhookHandler(t)

	rec := deliver(t, wh, goldenNotification, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body runtime.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, runtime.CodeUnauthorized, body.Code)
}

func TestHandleDelivery_TamperedBodyRejected(t *testing.T) {
	wh := newTestWebhookHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"tampered"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Hub-Signature-256", signature.Sign(testSecret, []byte(goldenNotification)))
	rec := httptest.NewRecorder()

	require.NoError(t, wh.HandleDelivery(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleDelivery_MalformedPayloadRejected(t *testing.T) {
	wh := newTestWebhookHandler(t)

	rec := deliver(t, wh, `{"object":"instagram","entry":[{"id":"x"}]}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body runtime.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, runtime.CodeWebhookValidationFailed, body.Code)
}

func TestHandleDelivery_CorrelationHeaderPropagates(t *testing.T) {
	wh := newTestWebhookHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(goldenNotification))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Hub-Signature-256", signature.Sign(testSecret, []byte(goldenNotification)))
	req.Header.Set("X-Correlation-Id", "corr-abc-123")
	rec := httptest.NewRecorder()

	require.NoError(t, wh.HandleDelivery(e.NewContext(req, rec)))
	assert.Equal(t, "corr-abc-123", rec.Header().Get("X-Correlation-Id"))

	var body runtime.BatchBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "corr-abc-123", body.CorrelationID)
}

func TestHandleHealth_ReportsManifest(t *testing.T) {
	hh := handler.NewHealthHandler(whatsapp.Manifest())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, hh.HandleHealth(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "whatsapp", body["connector"])
	assert.NotEmpty(t, body["version"])
	assert.Contains(t, body["capabilities"], connector.CapabilityInboundMessages)
}
