package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// NotificationManager routes a notice to the notifier registered for a system,
// together with the template registered for that (notice, system) pair.
type NotificationManager struct {
	mu                   sync.RWMutex
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

func NewNotificationManager(opts ...Option) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// RegisterNotifier replaces any notifier already registered for system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// HasNotifier reports whether a channel is available, e.g. whether email
// second factor can be offered at all.
func (nm *NotificationManager) HasNotifier(system NotificationSystem) bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	_, ok := nm.notifiers[system]
	return ok
}

func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	switch system {
	case SMSSystem:
		if template.Text == "" {
			return fmt.Errorf("sms template for %s requires text", noticeType)
		}
	default:
		if template.Subject == "" {
			return fmt.Errorf("%s template for %s requires a subject", system, noticeType)
		}
		if template.Text == "" && template.Html == "" {
			return fmt.Errorf("%s template for %s requires text or html", system, noticeType)
		}
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers noticeType over system. Notifier errors are returned as is
// so callers can inspect gateway failures.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, system NotificationSystem, data NotificationData) (string, error) {
	nm.mu.RLock()
	template, templateExists := nm.notificationRegistry[noticeType][system]
	notifier, notifierExists := nm.notifiers[system]
	nm.mu.RUnlock()

	if !templateExists {
		return "", fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	if !notifierExists {
		return "", fmt.Errorf("no notifier registered for system: %s", system)
	}

	ack, err := notifier.Send(ctx, noticeType, data, template)
	if err != nil {
		slog.Warn("Notification not delivered", "type", noticeType, "system", system, "err", err)
		return "", err
	}
	return ack, nil
}
