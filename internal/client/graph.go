// Package client sends outbound intents to Meta's Graph API. One client
// serves both WhatsApp Cloud API sends and Instagram messaging; the intent
// provider selects the endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/dispatcher"
	"github.com/chatmesh/connectors/internal/masking"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	defaultTimeout    = 10 * time.Second

	// maxResponseBytes bounds how much of a Graph response is read; error
	// bodies past this are irrelevant noise.
	maxResponseBytes = 64 << 10
)

// APIError is a non-2xx Graph API response. The body excerpt is already
// masked and truncated.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api status %d: %s", e.Status, e.Body)
}

// UpstreamStatus exposes the provider HTTP status to the dispatcher.
func (e *APIError) UpstreamStatus() int { return e.Status }

// Config wires a GraphClient.
type Config struct {
	BaseURL       string
	APIVersion    string
	AccessToken   string
	PhoneNumberID string
	PageID        string
	Timeout       time.Duration
	Logger        *zap.Logger
}

// GraphClient implements dispatcher.Sender against the Graph API. Transient
// failures (429, 5xx, transport errors) are retried up to three times with
// jittered backoff before the send is reported failed.
type GraphClient struct {
	http          *http.Client
	baseURL       string
	version       string
	accessToken   string
	phoneNumberID string
	pageID        string
	logger        *zap.Logger
}

// New validates the wiring and returns a ready client.
func New(cfg Config) (*GraphClient, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("client: access token required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("client: logger required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = leveledLogger{cfg.Logger.Named("graph").Sugar()}

	return &GraphClient{
		http:          rc.StandardClient(),
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		version:       cfg.APIVersion,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		pageID:        cfg.PageID,
		logger:        cfg.Logger,
	}, nil
}

// Send routes one intent to the matching Graph endpoint.
func (c *GraphClient) Send(ctx context.Context, in connector.OutboundIntent) (dispatcher.SendResult, error) {
	switch in.Provider {
	case connector.PlatformWhatsApp:
		return c.sendWhatsApp(ctx, in)
	case connector.PlatformInstagram:
		if in.Payload.Type == connector.IntentCommentReply {
			return c.sendCommentReply(ctx, in)
		}
		return c.sendInstagramDM(ctx, in)
	default:
		return dispatcher.SendResult{}, fmt.Errorf("client: unsupported provider %q", in.Provider)
	}
}

func (c *GraphClient) sendWhatsApp(ctx context.Context, in connector.OutboundIntent) (dispatcher.SendResult, error) {
	if c.phoneNumberID == "" {
		return dispatcher.SendResult{}, fmt.Errorf("client: whatsapp phone number id not configured")
	}
	body, err := buildWhatsAppRequest(in)
	if err != nil {
		return dispatcher.SendResult{}, err
	}

	var resp waResponse
	status, err := c.post(ctx, c.phoneNumberID+"/messages", body, &resp)
	if err != nil {
		return dispatcher.SendResult{}, err
	}
	res := dispatcher.SendResult{UpstreamStatus: status}
	if len(resp.Messages) > 0 {
		res.MessageID = resp.Messages[0].ID
	}
	return res, nil
}

func (c *GraphClient) sendInstagramDM(ctx context.Context, in connector.OutboundIntent) (dispatcher.SendResult, error) {
	if c.pageID == "" {
		return dispatcher.SendResult{}, fmt.Errorf("client: instagram page id not configured")
	}
	body := igDMRequest{Recipient: igParty{ID: in.Recipient}}
	switch in.Payload.Type {
	case connector.IntentText:
		body.Message.Text = in.Payload.Text.Body
	case connector.IntentMedia:
		m := in.Payload.Media
		body.Message.Attachment = &igAttachment{
			Type:    m.Kind,
			Payload: igAttachmentPayload{URL: m.Link},
		}
	default:
		return dispatcher.SendResult{}, fmt.Errorf("client: instagram dm cannot carry payload type %q", in.Payload.Type)
	}

	var resp igDMResponse
	status, err := c.post(ctx, c.pageID+"/messages", body, &resp)
	if err != nil {
		return dispatcher.SendResult{}, err
	}
	return dispatcher.SendResult{MessageID: resp.MessageID, UpstreamStatus: status}, nil
}

func (c *GraphClient) sendCommentReply(ctx context.Context, in connector.OutboundIntent) (dispatcher.SendResult, error) {
	reply := in.Payload.CommentReply
	var resp igReplyResponse
	status, err := c.post(ctx, reply.CommentID+"/replies", igReplyRequest{Message: reply.Text}, &resp)
	if err != nil {
		return dispatcher.SendResult{}, err
	}
	return dispatcher.SendResult{MessageID: resp.ID, UpstreamStatus: status}, nil
}

// post sends one JSON request and decodes a 2xx response into out. Non-2xx
// responses become APIError with a masked body excerpt.
func (c *GraphClient) post(ctx context.Context, path string, body, out any) (int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode graph request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Body: masking.Sanitize(string(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode graph response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// leveledLogger adapts zap onto retryablehttp's logging interface so retry
// chatter lands in the structured log stream.
type leveledLogger struct{ s *zap.SugaredLogger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
