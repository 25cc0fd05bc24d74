// Package smsgateway sends single text messages through an HTTP SMS gateway.
//
// Wire contract:
//
//	POST {baseURL}/message
//	Authorization: Basic base64(username:password)
//	{"channel":"sms","from":"<sender>","to":"<e.164>","content":{"type":"Text","text":"<body>"}}
//
// Any 2xx is success and the response body is returned verbatim. Anything
// else is a *GatewayError carrying the reason phrase. There is no retry.
package smsgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// MessagePath is the gateway endpoint, relative to the configured base URL.
const MessagePath = "message"

type Config struct {
	BaseURL  string
	Username string
	Password string
	Sender   string
	Channel  string
}

// GatewayError is returned for any non-2xx gateway response.
type GatewayError struct {
	StatusCode int
	Reason     string
}

func (e *GatewayError) Error() string {
	return e.Reason
}

// Sender is the capability the verification flows depend on.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type Client struct {
	httpClient    *http.Client
	endpoint      string
	authorization string
	sender        string
	channel       string
}

// NewClient resolves the endpoint and computes the basic auth header once.
// httpClient may be nil, in which case http.DefaultClient is used.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("sms gateway base url is required")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sms gateway base url: %w", err)
	}
	// "https://host/api" must resolve "message" to ".../api/message"
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	endpoint := base.ResolveReference(&url.URL{Path: MessagePath})

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(config.Username + ":" + config.Password))

	return &Client{
		httpClient:    httpClient,
		endpoint:      endpoint.String(),
		authorization: "Basic " + credentials,
		sender:        config.Sender,
		channel:       config.Channel,
	}, nil
}

// Send delivers body to the given phone number and returns the gateway's
// acknowledgement text.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	msg := NewMessage(c.channel, c.sender, to, body)
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode sms message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", c.authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		reason := reasonPhrase(resp)
		slog.Warn("SMS gateway rejected message", "status", resp.StatusCode, "reason", reason)
		return "", &GatewayError{StatusCode: resp.StatusCode, Reason: reason}
	}

	ack, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read sms gateway response: %w", err)
	}
	return string(ack), nil
}

// reasonPhrase extracts "Service Unavailable" from "503 Service Unavailable".
func reasonPhrase(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
