package notification

import "context"

// NotificationSystem is a delivery channel.
type NotificationSystem string

// NoticeType names a message the identity provider sends.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
)

const (
	PhoneVerifyCodeNotice    NoticeType = "phone_verify_code"
	EnablePhone2FACodeNotice NoticeType = "enable_phone_2fa_code"
	TwofaCodeNotice          NoticeType = "twofa_code"
	EmailVerifyCodeNotice    NoticeType = "email_verify_code"
)

// NoticeTemplate is rendered with NotificationData.Data. SMS uses Text only.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type NotificationData struct {
	To   string            // phone number or email address
	Data map[string]string // template values, e.g. "Code"
}

// Notifier delivers one rendered notice and returns the channel's
// acknowledgement text.
type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, data NotificationData, template NoticeTemplate) (string, error)
}
