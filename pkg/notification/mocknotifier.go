package notification

import (
	"context"
	"sync"
)

type SentNotification struct {
	Type NoticeType
	To   string
	Body string
	Data map[string]string
}

// MockNotifier records every notice and answers with Ack, or Err when set.
type MockNotifier struct {
	mu                sync.Mutex
	Ack               string
	Err               error
	SentNotifications []SentNotification
}

func (m *MockNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	body, err := renderText(string(noticeType), noticeTemplate.Text, notification.Data)
	if err != nil {
		return "", err
	}
	m.SentNotifications = append(m.SentNotifications, SentNotification{
		Type: noticeType,
		To:   notification.To,
		Body: body,
		Data: notification.Data,
	})
	return m.Ack, nil
}

// Sent returns a copy of the recorded notices.
func (m *MockNotifier) Sent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentNotification(nil), m.SentNotifications...)
}

// Last returns the most recent notice, or false if none was sent.
func (m *MockNotifier) Last() (SentNotification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentNotifications) == 0 {
		return SentNotification{}, false
	}
	return m.SentNotifications[len(m.SentNotifications)-1], true
}
