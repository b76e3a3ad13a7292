package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/outbound"
)

// DefaultBaseURL is the provider's REST API root; overridable for testing
// and for self-hosted/alternate telephony backends.
const DefaultBaseURL = "https://api.twilio.com"

// CredentialStore resolves the per-Phone Basic-auth credential the provider
// REST API requires, decrypting the AES-256-GCM envelope stored at rest.
type CredentialStore interface {
	Credential(ctx context.Context, phone string) (accountSID, authToken string, err error)
}

// Client implements outbound.TelephonyClient against the provider's REST
// API, following the request/response shape of spec.md §6's "Telephony REST
// (outbound call start)": POST Calls/connect with
// {From, To, CallerId, Url, StatusCallback, StatusCallbackMethod,
// StatusCallbackEvent[]}, returning {Call.Sid}.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	credentials CredentialStore
	webhookURL  string
	logger      *o11y.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithBaseURL(baseURL string) Option {
	return func(cl *Client) { cl.baseURL = baseURL }
}

func WithLogger(logger *o11y.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient constructs a Client. webhookURL is the public callback URL the
// provider will POST media-stream connect instructions and status events to
// (the `Url`/`StatusCallback` fields of the connect request).
func NewClient(credentials CredentialStore, webhookURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     DefaultBaseURL,
		credentials: credentials,
		webhookURL:  webhookURL,
		logger:      o11y.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type connectRequest struct {
	From                 string   `json:"From"`
	To                   string   `json:"To"`
	CallerID             string   `json:"CallerId"`
	URL                  string   `json:"Url"`
	StatusCallback       string   `json:"StatusCallback"`
	StatusCallbackMethod string   `json:"StatusCallbackMethod"`
	StatusCallbackEvent  []string `json:"StatusCallbackEvent"`
}

type connectResponse struct {
	Sid string `json:"Sid"`
}

// statusCallbackEvents is the set of status transitions the provider should
// notify the status webhook about, per spec.md §6's CallStatus enum.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// PlaceCall implements outbound.TelephonyClient. It resolves the per-Phone
// Basic-auth credential, builds the media-stream connect URL and status
// callback URL from c.webhookURL, and POSTs Calls/connect.
func (c *Client) PlaceCall(ctx context.Context, req outbound.PlaceCallRequest) (string, error) {
	const op = "twilio.Client.PlaceCall"
	ctx, span := o11y.StartSpan(ctx, op, o11y.Attrs{o11y.AttrCallID: req.Call.ID})
	defer span.End()

	accountSID, authToken, err := c.credentials.Credential(ctx, req.From)
	if err != nil {
		span.RecordError(err)
		return "", &errs.Error{Op: op, Kind: errs.UpstreamFatal, Err: err}
	}

	body := connectRequest{
		From:                 req.From,
		To:                   req.To,
		CallerID:             req.From,
		URL:                  c.mediaStreamURL(req.Call.ID),
		StatusCallback:       c.statusCallbackURL(req.Call.ID),
		StatusCallbackMethod: http.MethodPost,
		StatusCallbackEvent:  statusCallbackEvents,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errs.Wrap(op, errs.Internal, err)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/connect", c.baseURL, url.PathEscape(accountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errs.Wrap(op, errs.Internal, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(accountSID, authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return "", errs.Wrap(op, errs.UpstreamTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", errs.New(op, errs.UpstreamTransient, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", errs.New(op, errs.UpstreamFatal, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}

	var parsed connectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errs.Wrap(op, errs.UpstreamFatal, err)
	}
	if parsed.Sid == "" {
		return "", errs.New(op, errs.UpstreamFatal, "provider accepted the call but returned no Call.Sid")
	}

	c.logger.Info(ctx, "outbound call placed", "call_id", req.Call.ID, "provider_call_sid", parsed.Sid)
	return parsed.Sid, nil
}

func (c *Client) mediaStreamURL(callID string) string {
	return fmt.Sprintf("%s/telephony/media/%s", c.webhookURL, callID)
}

func (c *Client) statusCallbackURL(callID string) string {
	return fmt.Sprintf("%s/telephony/status/%s", c.webhookURL, callID)
}
