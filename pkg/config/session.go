package config

import "time"

// SessionConfig covers the three cookies issued by the sign-in manager.
type SessionConfig struct {
	JwtSecret      string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	CookieSecure   bool          `env:"COOKIE_SECURE" env-default:"false"`
	CookieHttpOnly bool          `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	SessionExpiry  time.Duration `env:"SESSION_EXPIRY" env-default:"8h"`
	PendingExpiry  time.Duration `env:"TWO_FACTOR_PENDING_EXPIRY" env-default:"5m"`
	RememberExpiry time.Duration `env:"TWO_FACTOR_REMEMBER_EXPIRY" env-default:"720h"`
}

func (s SessionConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireMinLength("JWT_SECRET", s.JwtSecret, 16),
		RequirePositiveDuration("SESSION_EXPIRY", s.SessionExpiry),
		RequirePositiveDuration("TWO_FACTOR_PENDING_EXPIRY", s.PendingExpiry),
		RequirePositiveDuration("TWO_FACTOR_REMEMBER_EXPIRY", s.RememberExpiry),
	)
}

type LockoutConfig struct {
	MaxFailedAttempts int           `env:"LOCKOUT_MAX_FAILED_ATTEMPTS" env-default:"5"`
	Duration          time.Duration `env:"LOCKOUT_DURATION" env-default:"5m"`
}

func (l LockoutConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePositive("LOCKOUT_MAX_FAILED_ATTEMPTS", l.MaxFailedAttempts),
		RequirePositiveDuration("LOCKOUT_DURATION", l.Duration),
	)
}

// CodeConfig sets the time step of emailed and texted codes. Skew is the
// number of neighbouring steps still accepted.
type CodeConfig struct {
	PeriodSeconds uint `env:"CODE_PERIOD_SECONDS" env-default:"180"`
	Skew          uint `env:"CODE_SKEW" env-default:"1"`
}

func (c CodeConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePositive("CODE_PERIOD_SECONDS", int(c.PeriodSeconds)),
	)
}

// IssuerConfig is the identity provider metadata shown to users, e.g. the
// issuer label inside authenticator apps.
type IssuerConfig struct {
	Name    string `env:"IDP_ISSUER_NAME" env-default:"simple-idp"`
	BaseURL string `env:"IDP_BASE_URL" env-default:"http://localhost:4000"`
}

func (i IssuerConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("IDP_ISSUER_NAME", i.Name),
		RequireValidURL("IDP_BASE_URL", i.BaseURL),
	)
}

// CorsConfig lists the browser origins allowed to call the JSON API.
type CorsConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

func (l LogConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("LOG_LEVEL", l.Level, []string{"debug", "info", "warn", "error"}),
		RequireOneOf("LOG_FORMAT", l.Format, []string{"text", "json"}),
	)
}

// SecurityHeadersConfig feeds the response-header policy. Dev drops HSTS.
type SecurityHeadersConfig struct {
	Dev         bool   `env:"IDP_DEV" env-default:"false"`
	ClientUIURL string `env:"CLIENT_UI_URL" env-default:"http://localhost:3000"`
}

func (s SecurityHeadersConfig) Validate() ValidationErrors {
	return CollectErrors(RequireValidURL("CLIENT_UI_URL", s.ClientUIURL))
}

// RateLimitConfig caps password attempts and code sends. Each limit is a
// burst refilled evenly over its window.
type RateLimitConfig struct {
	LoginBurst     int           `env:"RATE_LIMIT_LOGIN_BURST" env-default:"10"`
	LoginWindow    time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" env-default:"1m"`
	SendCodeBurst  int           `env:"RATE_LIMIT_SEND_CODE_BURST" env-default:"5"`
	SendCodeWindow time.Duration `env:"RATE_LIMIT_SEND_CODE_WINDOW" env-default:"15m"`
}

func (r RateLimitConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePositive("RATE_LIMIT_LOGIN_BURST", r.LoginBurst),
		RequirePositiveDuration("RATE_LIMIT_LOGIN_WINDOW", r.LoginWindow),
		RequirePositive("RATE_LIMIT_SEND_CODE_BURST", r.SendCodeBurst),
		RequirePositiveDuration("RATE_LIMIT_SEND_CODE_WINDOW", r.SendCodeWindow),
	)
}
