package runtime

import "strings"

// Request is the transport-neutral view of an incoming webhook request.
// The HTTP adapter lowercases header names and captures the raw body bytes
// before anything else touches the stream; signature verification depends
// on those exact bytes.
type Request struct {
	Method     string
	Path       string
	Headers    map[string][]string
	Query      map[string]string
	RawBody    []byte
	RemoteAddr string
}

// Header returns the first value of a header, looked up case-insensitively.
func (r Request) Header(name string) string {
	vs := r.Headers[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Response is what the adapter writes back. A JSON content type renders
// Body with the encoder; text/plain writes the string Body verbatim.
type Response struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        any
}

// Response content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// CorrelationHeader carries the caller-assigned correlation id; the runtime
// echoes it on every response.
const CorrelationHeader = "x-correlation-id"

// Wire-level error codes.
const (
	CodeWebhookValidationFailed = "WEBHOOK_VALIDATION_FAILED"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Per-event result codes.
const (
	CodeNoHandler     = "NO_HANDLER"
	CodeHandlerFailed = "HANDLER_FAILED"
)

// ErrorBody is the JSON envelope for non-200 responses.
type ErrorBody struct {
	OK            bool   `json:"ok"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

// BatchSummary totals one processed webhook batch. Every event lands in
// exactly one of the three outcome counters.
type BatchSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Deduped   int `json:"deduped"`
	Failed    int `json:"failed"`
}

// ItemResult reports the outcome for one event, in parser order. A missing
// handler and a handler error both report OK=false, distinguished by Code.
type ItemResult struct {
	Capability    string  `json:"capability"`
	DedupeKey     string  `json:"dedupeKey"`
	OK            bool    `json:"ok"`
	Deduped       bool    `json:"deduped"`
	CorrelationID string  `json:"correlationId"`
	LatencyMs     float64 `json:"latencyMs"`
	Code          string  `json:"code,omitempty"`
}

// BatchBody is the 200 response for an accepted webhook batch.
type BatchBody struct {
	OK            bool         `json:"ok"`
	Connector     string       `json:"connector"`
	CorrelationID string       `json:"correlationId"`
	FullyDeduped  bool         `json:"fullyDeduped"`
	Summary       BatchSummary `json:"summary"`
	Results       []ItemResult `json:"results,omitempty"`
}

func errorResponse(status int, code, message, correlationID string) Response {
	return Response{
		Status:      status,
		ContentType: ContentTypeJSON,
		Headers:     map[string]string{CorrelationHeader: correlationID},
		Body: ErrorBody{
			Code:          code,
			Message:       message,
			CorrelationID: correlationID,
		},
	}
}
