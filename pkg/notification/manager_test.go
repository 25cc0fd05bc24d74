package notification

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idp/pkg/smsgateway"
)

const exampleNotice NoticeType = "example"

func TestRegisterNotification(t *testing.T) {
	tests := []struct {
		name        string
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:     "email with text and html",
			system:   EmailSystem,
			template: NoticeTemplate{Subject: "Example", Text: "text", Html: "<p>html</p>"},
		},
		{
			name:     "email with html only",
			system:   EmailSystem,
			template: NoticeTemplate{Subject: "Example", Html: "<p>html</p>"},
		},
		{
			name:     "sms with text",
			system:   SMSSystem,
			template: NoticeTemplate{Text: "code {{.Code}}"},
		},
		{
			name:        "empty system",
			system:      "",
			template:    NoticeTemplate{Subject: "Example", Text: "text"},
			shouldError: true,
		},
		{
			name:        "email without subject",
			system:      EmailSystem,
			template:    NoticeTemplate{Text: "text"},
			shouldError: true,
		},
		{
			name:        "email without content",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example"},
			shouldError: true,
		},
		{
			name:        "sms with html only",
			system:      SMSSystem,
			template:    NoticeTemplate{Html: "<p>nope</p>"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nm, err := NewNotificationManager()
			require.NoError(t, err)

			err = nm.RegisterNotification(exampleNotice, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.notificationRegistry[exampleNotice][tt.system])
		})
	}
}

func TestSendRendersTemplate(t *testing.T) {
	sms := &MockNotifier{Ack: "OK"}
	nm, err := NewNotificationManager(WithNotifier(SMSSystem, sms), WithDefaultTemplates())
	require.NoError(t, err)

	ack, err := nm.Send(context.Background(), PhoneVerifyCodeNotice, SMSSystem, NotificationData{
		To:   "+15551234567",
		Data: map[string]string{"Code": "123456"},
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", ack)

	sent, ok := sms.Last()
	require.True(t, ok)
	assert.Equal(t, "+15551234567", sent.To)
	assert.Equal(t, "Verify code: 123456", sent.Body)
}

func TestDefaultTemplateBodies(t *testing.T) {
	tests := []struct {
		noticeType NoticeType
		want       string
	}{
		{PhoneVerifyCodeNotice, "Verify code: 654321"},
		{EnablePhone2FACodeNotice, "Enable phone 2FA code: 654321"},
		{TwofaCodeNotice, "2FA code: 654321"},
	}
	for _, tt := range tests {
		t.Run(string(tt.noticeType), func(t *testing.T) {
			sms := &MockNotifier{}
			nm, err := NewNotificationManager(WithNotifier(SMSSystem, sms), WithDefaultTemplates())
			require.NoError(t, err)

			_, err = nm.Send(context.Background(), tt.noticeType, SMSSystem, NotificationData{
				To:   "+15551234567",
				Data: map[string]string{"Code": "654321"},
			})
			require.NoError(t, err)
			sent, _ := sms.Last()
			assert.Equal(t, tt.want, sent.Body)
		})
	}
}

func TestSendErrors(t *testing.T) {
	nm, err := NewNotificationManager(WithDefaultTemplates())
	require.NoError(t, err)

	_, err = nm.Send(context.Background(), "unregistered", SMSSystem, NotificationData{})
	assert.Error(t, err)

	_, err = nm.Send(context.Background(), TwofaCodeNotice, EmailSystem, NotificationData{})
	require.Error(t, err)
	assert.Equal(t, "no notifier registered for system: email", err.Error())
	assert.False(t, nm.HasNotifier(EmailSystem))

	failing := &MockNotifier{Err: errors.New("relay down")}
	nm.RegisterNotifier(EmailSystem, failing)
	assert.True(t, nm.HasNotifier(EmailSystem))
	_, err = nm.Send(context.Background(), TwofaCodeNotice, EmailSystem, NotificationData{To: "a@example.com"})
	assert.EqualError(t, err, "relay down")
}

func TestSMSNotifierPassesGatewayErrorThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := smsgateway.NewClient(smsgateway.Config{BaseURL: srv.URL, Sender: "idp"}, srv.Client())
	require.NoError(t, err)

	nm, err := NewNotificationManager(WithSMSGateway(client), WithDefaultTemplates())
	require.NoError(t, err)

	_, err = nm.Send(context.Background(), TwofaCodeNotice, SMSSystem, NotificationData{
		To:   "+15551234567",
		Data: map[string]string{"Code": "111111"},
	})
	var gwErr *smsgateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "Service Unavailable", gwErr.Reason)
}

func TestMissingTemplateKeyFails(t *testing.T) {
	sms := &MockNotifier{}
	nm, err := NewNotificationManager(WithNotifier(SMSSystem, sms), WithDefaultTemplates())
	require.NoError(t, err)

	_, err = nm.Send(context.Background(), TwofaCodeNotice, SMSSystem, NotificationData{To: "+15551234567"})
	assert.Error(t, err)
	assert.Empty(t, sms.Sent())
}

func TestEmailNotifierBuildsMultipartMessage(t *testing.T) {
	notifier, err := NewEmailNotifier(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	require.NoError(t, err)

	msg, err := notifier.buildMessage(TwofaCodeNotice, NotificationData{
		To:   "alice@example.com",
		Data: map[string]string{"Code": "246810"},
	}, NoticeTemplate{Subject: TwofaCodeSubject, Text: TwofaCodeText, Html: TwofaCodeHtml})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your sign-in code")
	assert.Contains(t, raw, "2FA code: 246810")
	assert.Contains(t, raw, "text/html")

	_, err = notifier.buildMessage(TwofaCodeNotice, NotificationData{}, NoticeTemplate{Subject: "s", Text: "t"})
	assert.Error(t, err)
}
