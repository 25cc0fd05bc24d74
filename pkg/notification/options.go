package notification

import "github.com/tendant/simple-idp/pkg/smsgateway"

// Message bodies sent for each notice. The SMS texts are what users see on
// their phones.
const (
	PhoneVerifyCodeText    = "Verify code: {{.Code}}"
	EnablePhone2FACodeText = "Enable phone 2FA code: {{.Code}}"
	TwofaCodeText          = "2FA code: {{.Code}}"
	TwofaCodeSubject       = "Your sign-in code"
	TwofaCodeHtml          = `<p>Your sign-in code is <strong>{{.Code}}</strong>.</p><p>If you did not try to sign in, change your password.</p>`
	EmailVerifyCodeText    = "Email verification code: {{.Code}}"
	EmailVerifyCodeSubject = "Confirm your email address"
	EmailVerifyCodeHtml    = `<p>Your email verification code is <strong>{{.Code}}</strong>.</p>`
)

type Option func(*NotificationManager) error

func WithNotifier(system NotificationSystem, notifier Notifier) Option {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithSMSGateway registers the SMS channel backed by gateway.
func WithSMSGateway(gateway smsgateway.Sender) Option {
	return WithNotifier(SMSSystem, NewSMSNotifier(gateway))
}

// WithSMTP registers the email channel.
func WithSMTP(config SMTPConfig) Option {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithDefaultTemplates registers the verification and second-factor notices.
func WithDefaultTemplates() Option {
	return func(nm *NotificationManager) error {
		registrations := []struct {
			noticeType NoticeType
			system     NotificationSystem
			template   NoticeTemplate
		}{
			{PhoneVerifyCodeNotice, SMSSystem, NoticeTemplate{Text: PhoneVerifyCodeText}},
			{EnablePhone2FACodeNotice, SMSSystem, NoticeTemplate{Text: EnablePhone2FACodeText}},
			{TwofaCodeNotice, SMSSystem, NoticeTemplate{Text: TwofaCodeText}},
			{TwofaCodeNotice, EmailSystem, NoticeTemplate{Subject: TwofaCodeSubject, Text: TwofaCodeText, Html: TwofaCodeHtml}},
			{EmailVerifyCodeNotice, EmailSystem, NoticeTemplate{Subject: EmailVerifyCodeSubject, Text: EmailVerifyCodeText, Html: EmailVerifyCodeHtml}},
		}
		for _, reg := range registrations {
			if err := nm.RegisterNotification(reg.noticeType, reg.system, reg.template); err != nil {
				return err
			}
		}
		return nil
	}
}
