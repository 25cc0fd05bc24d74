package config

import (
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Sms     SmsConfig
	Session SessionConfig
	Lockout LockoutConfig
	Cors    CorsConfig
}

func TestReadEnvDefaults(t *testing.T) {
	t.Setenv("SMS_URL", "https://gateway.example.com/api")
	t.Setenv("SMS_USERNAME", "idp")
	t.Setenv("SMS_PASSWORD", "secret")

	var cfg testConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))

	assert.Equal(t, "0041773344333", cfg.Sms.Sender)
	assert.Equal(t, "sms", cfg.Sms.Channel)
	assert.Equal(t, 5*time.Minute, cfg.Session.PendingExpiry)
	assert.Equal(t, 720*time.Hour, cfg.Session.RememberExpiry)
	assert.Equal(t, 5, cfg.Lockout.MaxFailedAttempts)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Cors.AllowedOrigins)

	gw := cfg.Sms.ToGatewayConfig()
	assert.Equal(t, "https://gateway.example.com/api", gw.BaseURL)
	assert.Equal(t, "idp", gw.Username)

	assert.NoError(t, Validate(cfg.Sms.Validate, cfg.Session.Validate, cfg.Lockout.Validate))
}

func TestSmsConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config SmsConfig
		fields []string
	}{
		{
			name:   "all set",
			config: SmsConfig{URL: "https://sms", Username: "u", Password: "p", Sender: "s"},
		},
		{
			name:   "nothing set",
			config: SmsConfig{},
			fields: []string{"SMS_URL", "SMS_USERNAME", "SMS_PASSWORD", "SMS_SENDER"},
		},
		{
			name:   "blank password",
			config: SmsConfig{URL: "https://sms", Username: "u", Password: "  ", Sender: "s"},
			fields: []string{"SMS_PASSWORD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.config.Validate()
			if len(tt.fields) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.fields, errs.Fields())
		})
	}
}

func TestValidateCombinesSections(t *testing.T) {
	err := Validate(
		SmsConfig{URL: "https://sms", Username: "u", Password: "p", Sender: "s"}.Validate,
		SessionConfig{JwtSecret: "short"}.Validate,
		PersistenceConfig{Type: "mongo"}.Validate,
	)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Contains(t, errs.Fields(), "JWT_SECRET")
	assert.Contains(t, errs.Fields(), "IDP_PERSISTENCE_TYPE")
	assert.Contains(t, err.Error(), "configuration validation failed:")
}

func TestPersistenceConfigFileNeedsPath(t *testing.T) {
	errs := PersistenceConfig{Type: "file"}.Validate()
	assert.Equal(t, []string{"IDP_PERSISTENCE_FILE"}, errs.Fields())
	assert.Empty(t, PersistenceConfig{Type: "inmem"}.Validate())
}

func TestEmailConfigDisabledSkipsValidation(t *testing.T) {
	assert.False(t, EmailConfig{}.Enabled())
	assert.Empty(t, EmailConfig{}.Validate())
	assert.NotEmpty(t, EmailConfig{Host: "smtp.example.com"}.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("IDP_TEST_BOOL", "Yes")
	t.Setenv("IDP_TEST_BAD_BOOL", "maybe")

	assert.True(t, GetEnvBool("IDP_TEST_BOOL", false))
	assert.True(t, GetEnvBool("IDP_TEST_BAD_BOOL", true))
	assert.Equal(t, "fallback", GetEnvOrDefault("IDP_TEST_UNSET", "fallback"))
}

func TestRateLimitConfig(t *testing.T) {
	var cfg RateLimitConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	assert.Equal(t, 5, cfg.SendCodeBurst)
	assert.Equal(t, 15*time.Minute, cfg.SendCodeWindow)
	assert.Empty(t, cfg.Validate())

	cfg.SendCodeBurst = 0
	assert.Equal(t, []string{"RATE_LIMIT_SEND_CODE_BURST"}, cfg.Validate().Fields())
}

func TestCodeConfig(t *testing.T) {
	var cfg CodeConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	assert.Equal(t, uint(180), cfg.PeriodSeconds)
	assert.Equal(t, uint(1), cfg.Skew)

	cfg.PeriodSeconds = 0
	assert.Equal(t, []string{"CODE_PERIOD_SECONDS"}, cfg.Validate().Fields())
}

func TestSecurityHeadersConfigNeedsAbsoluteURL(t *testing.T) {
	assert.Empty(t, SecurityHeadersConfig{ClientUIURL: "https://app.example.com"}.Validate())
	assert.Equal(t, []string{"CLIENT_UI_URL"}, SecurityHeadersConfig{ClientUIURL: "app.example.com"}.Validate().Fields())
}
