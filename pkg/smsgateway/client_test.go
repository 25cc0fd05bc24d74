package smsgateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          Message
}

func newGateway(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		captured = append(captured, capturedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          msg,
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestClientSend_Success(t *testing.T) {
	srv, captured := newGateway(t, http.StatusOK, "OK")

	client, err := NewClient(Config{
		BaseURL:  srv.URL + "/api",
		Username: "user",
		Password: "secret",
		Sender:   "0041773344333",
	}, srv.Client())
	require.NoError(t, err)

	ack, err := client.Send(context.Background(), "+15551234567", "Verify code: 123456")
	require.NoError(t, err)
	assert.Equal(t, "OK", ack)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/message", req.Path)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")), req.Authorization)
	assert.Contains(t, req.ContentType, "application/json")
	assert.Equal(t, Message{
		Channel: "sms",
		From:    "0041773344333",
		To:      "+15551234567",
		Content: Content{Type: "Text", Text: "Verify code: 123456"},
	}, req.Body)
}

func TestClientSend_BaseURLWithTrailingSlash(t *testing.T) {
	srv, captured := newGateway(t, http.StatusAccepted, "queued")

	client, err := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	ack, err := client.Send(context.Background(), "+15551234567", "hi")
	require.NoError(t, err)
	assert.Equal(t, "queued", ack)
	assert.Equal(t, "/message", (*captured)[0].Path)
}

func TestClientSend_NonSuccessReturnsReasonPhrase(t *testing.T) {
	srv, captured := newGateway(t, http.StatusServiceUnavailable, "down for maintenance")

	client, err := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	ack, err := client.Send(context.Background(), "+15551234567", "2FA code: 000000")
	assert.Empty(t, ack)
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)
	assert.Equal(t, "Service Unavailable", gwErr.Reason)
	assert.Equal(t, "Service Unavailable", err.Error())

	// no retry
	assert.Len(t, *captured, 1)
}

func TestClientSend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(Config{BaseURL: url}, nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "+15551234567", "hi")
	require.Error(t, err)
	var gwErr *GatewayError
	assert.False(t, errors.As(err, &gwErr))
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}

func TestNewClient_NilUsesDefaultClient(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "https://sms.example.com"}, nil)
	require.NoError(t, err)
	assert.Same(t, http.DefaultClient, c.httpClient)
	assert.Zero(t, c.httpClient.Timeout)
}

func TestNewMessage_DefaultsChannel(t *testing.T) {
	msg := NewMessage("", "sender", "+41790000000", "body")
	assert.Equal(t, "sms", msg.Channel)
	assert.Equal(t, "Text", msg.Content.Type)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"sms","from":"sender","to":"+41790000000","content":{"type":"Text","text":"body"}}`, string(raw))
}
