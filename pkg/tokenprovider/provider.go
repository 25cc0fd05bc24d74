package tokenprovider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/simple-idp/pkg/user"
)

// Purpose scopes a code so it can only be verified for what it was issued for.
type Purpose string

const (
	PurposePhone         Purpose = "Phone"
	PurposeEmail         Purpose = "Email"
	PurposeAuthenticator Purpose = "Authenticator"

	changePhoneNumberPrefix = "ChangePhoneNumber:"
	confirmEmailPrefix      = "ConfirmEmail:"
)

// ChangePhoneNumberPurpose binds a code to one target phone number.
func ChangePhoneNumberPurpose(phoneNumber string) Purpose {
	return Purpose(changePhoneNumberPrefix + phoneNumber)
}

// ConfirmEmailPurpose binds a code to one email address.
func ConfirmEmailPurpose(email string) Purpose {
	return Purpose(confirmEmailPrefix + email)
}

const (
	DefaultPeriod       uint = 180
	DefaultSkew         uint = 1
	AuthenticatorPeriod uint = 30
)

var ErrMissingSecurityStamp = errors.New("user has no security stamp")

// Provider issues and checks short numeric codes derived from the user's
// security stamp, the purpose and the current time step. Codes are six
// digits, valid for Period seconds with Skew steps of tolerance either side,
// and can be verified once.
type Provider struct {
	period uint
	skew   uint
	used   UsedCodeStore
	now    func() time.Time
}

type Option func(*Provider)

func WithPeriod(seconds uint) Option {
	return func(p *Provider) {
		p.period = seconds
	}
}

func WithSkew(steps uint) Option {
	return func(p *Provider) {
		p.skew = steps
	}
}

func WithUsedCodeStore(store UsedCodeStore) Option {
	return func(p *Provider) {
		p.used = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		period: DefaultPeriod,
		skew:   DefaultSkew,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.used == nil {
		p.used = NewMemoryUsedCodeStore(WithMemoryClock(p.now))
	}
	return p
}

func (p *Provider) opts(period uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      p.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// window is how long a code can still validate after it was issued.
func (p *Provider) window(period uint) time.Duration {
	return time.Duration(period*(2*p.skew+1)) * time.Second
}

// purposeSecret is HMAC-SHA256(securityStamp, "<purpose>:<userID>") in base32.
func purposeSecret(u *user.User, purpose Purpose) (string, error) {
	if u.SecurityStamp == "" {
		return "", ErrMissingSecurityStamp
	}
	mac := hmac.New(sha256.New, []byte(u.SecurityStamp))
	mac.Write([]byte(string(purpose) + ":" + u.ID.String()))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil)), nil
}

func (p *Provider) Generate(ctx context.Context, purpose Purpose, u *user.User) (string, error) {
	secret, err := purposeSecret(u, purpose)
	if err != nil {
		return "", err
	}
	code, err := totp.GenerateCodeCustom(secret, p.now(), p.opts(p.period))
	if err != nil {
		slog.Error("Failed to generate code", "purpose", purposeLabel(purpose), "user_id", u.ID, "err", err)
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return code, nil
}

// Verify reports whether code is currently valid for (purpose, u) and has not
// been used before. A malformed code is simply not valid.
func (p *Provider) Verify(ctx context.Context, purpose Purpose, u *user.User, code string) (bool, error) {
	secret, err := purposeSecret(u, purpose)
	if err != nil {
		return false, err
	}
	return p.validate(ctx, purpose, u, secret, code, p.period)
}

func (p *Provider) GenerateChangePhoneNumberToken(ctx context.Context, u *user.User, phoneNumber string) (string, error) {
	return p.Generate(ctx, ChangePhoneNumberPurpose(phoneNumber), u)
}

func (p *Provider) VerifyChangePhoneNumberToken(ctx context.Context, u *user.User, code, phoneNumber string) (bool, error) {
	return p.Verify(ctx, ChangePhoneNumberPurpose(phoneNumber), u, code)
}

// VerifyAuthenticatorCode checks a code from the user's authenticator app
// against the enrolled key, on the standard 30 second step.
func (p *Provider) VerifyAuthenticatorCode(ctx context.Context, u *user.User, code string) (bool, error) {
	if u.AuthenticatorKey == "" {
		return false, nil
	}
	return p.validate(ctx, PurposeAuthenticator, u, u.AuthenticatorKey, code, AuthenticatorPeriod)
}

func (p *Provider) validate(ctx context.Context, purpose Purpose, u *user.User, secret, code string, period uint) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, p.now(), p.opts(period))
	if err != nil || !valid {
		return false, nil
	}

	first, err := p.used.MarkUsed(ctx, usedCodeKey(u, purpose, code), p.window(period))
	if err != nil {
		return false, fmt.Errorf("failed to record used code: %w", err)
	}
	if !first {
		slog.Warn("Code replayed", "purpose", purposeLabel(purpose), "user_id", u.ID)
		return false, nil
	}
	return true, nil
}

func usedCodeKey(u *user.User, purpose Purpose, code string) string {
	sum := sha256.Sum256([]byte(u.ID.String() + "|" + string(purpose) + "|" + code))
	return fmt.Sprintf("%x", sum)
}

// purposeLabel keeps phone numbers and addresses out of the logs.
func purposeLabel(purpose Purpose) string {
	for _, prefix := range []string{changePhoneNumberPrefix, confirmEmailPrefix} {
		if strings.HasPrefix(string(purpose), prefix) {
			return strings.TrimSuffix(prefix, ":")
		}
	}
	return string(purpose)
}
