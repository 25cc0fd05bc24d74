package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-idp/pkg/smsgateway"
)

// SMSNotifier renders the text template and hands it to the SMS gateway.
type SMSNotifier struct {
	gateway smsgateway.Sender
}

func NewSMSNotifier(gateway smsgateway.Sender) *SMSNotifier {
	return &SMSNotifier{gateway: gateway}
}

func (s *SMSNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) (string, error) {
	if notification.To == "" {
		return "", fmt.Errorf("sms notification requires 'To' phone number")
	}

	body, err := renderText(string(noticeType), noticeTemplate.Text, notification.Data)
	if err != nil {
		slog.Error("Failed to render sms template", "type", noticeType, "err", err)
		return "", err
	}

	// *smsgateway.GatewayError must reach the caller unwrapped
	ack, err := s.gateway.Send(ctx, notification.To, body)
	if err != nil {
		return "", err
	}
	slog.Info("SMS sent", "type", noticeType, "ack", ack)
	return ack, nil
}
