package config

import (
	"github.com/tendant/simple-idp/pkg/notification"
	"github.com/tendant/simple-idp/pkg/smsgateway"
)

// SmsConfig is the SMS gateway section. The gateway settings are only
// checked for presence.
type SmsConfig struct {
	URL      string `env:"SMS_URL"`
	Username string `env:"SMS_USERNAME"`
	Password string `env:"SMS_PASSWORD"`
	Sender   string `env:"SMS_SENDER" env-default:"0041773344333"`
	Channel  string `env:"SMS_CHANNEL" env-default:"sms"`
}

func (s SmsConfig) ToGatewayConfig() smsgateway.Config {
	return smsgateway.Config{
		BaseURL:  s.URL,
		Username: s.Username,
		Password: s.Password,
		Sender:   s.Sender,
		Channel:  s.Channel,
	}
}

func (s SmsConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("SMS_URL", s.URL),
		RequireNonEmpty("SMS_USERNAME", s.Username),
		RequireNonEmpty("SMS_PASSWORD", s.Password),
		RequireNonEmpty("SMS_SENDER", s.Sender),
	)
}

// EmailConfig holds the SMTP relay used by the email second factor.
// An empty Host disables the email channel.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (e EmailConfig) Enabled() bool {
	return e.Host != ""
}

func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

func (e EmailConfig) Validate() ValidationErrors {
	if !e.Enabled() {
		return nil
	}
	return CollectErrors(RequireNonEmpty("EMAIL_FROM", e.From))
}
