package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/metrics"
	"github.com/tendant/simple-idp/pkg/notification"
	"github.com/tendant/simple-idp/pkg/smsgateway"
	"github.com/tendant/simple-idp/pkg/tokenprovider"
	"github.com/tendant/simple-idp/pkg/user"
)

// UserStore is the part of user.UserManager the orchestrator mutates through.
type UserStore interface {
	SetPhoneNumber(u *user.User, phoneNumber string)
	Update(ctx context.Context, u *user.User) user.Result
}

type CodeGenerator interface {
	Generate(ctx context.Context, purpose tokenprovider.Purpose, u *user.User) (string, error)
	GenerateChangePhoneNumberToken(ctx context.Context, u *user.User, phoneNumber string) (string, error)
	VerifyChangePhoneNumberToken(ctx context.Context, u *user.User, code, phoneNumber string) (bool, error)
	VerifyAuthenticatorCode(ctx context.Context, u *user.User, code string) (bool, error)
	Verify(ctx context.Context, purpose tokenprovider.Purpose, u *user.User, code string) (bool, error)
}

// Notifier is satisfied by *notification.NotificationManager.
type Notifier interface {
	Send(ctx context.Context, noticeType notification.NoticeType, system notification.NotificationSystem, data notification.NotificationData) (string, error)
	HasNotifier(system notification.NotificationSystem) bool
}

type ClientRememberer interface {
	IsTwoFactorClientRemembered(r *http.Request, u *user.User) bool
}

const (
	PhoneNumberField = "Input.PhoneNumber"
	CodeField        = "Input.Code"
)

const (
	msgPhoneMismatch   = "Phone number does not match user, please update or add phone in your profile"
	msgPhoneRequired   = "The Phone number field is required."
	msgConfirmFailed   = "There was an error confirming the verification code"
	msgConfirmPersist  = "There was an error confirming the verification code, please try again"
	msgCodeInvalid     = "Verification code is invalid."
	msgDeliveryFailed  = "message could not be delivered"
	msgTwoFaNotEnabled = "Cannot disable 2FA as it's not currently enabled"
)

// PhoneVerificationService sends and checks codes for phone-number
// verification and for enrolling and using second factors.
type PhoneVerificationService struct {
	users      UserStore
	codes      CodeGenerator
	notifier   Notifier
	rememberer ClientRememberer
	metrics    *metrics.Metrics
	issuer     string
}

type Option func(*PhoneVerificationService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PhoneVerificationService) {
		s.metrics = m
	}
}

func WithClientRememberer(r ClientRememberer) Option {
	return func(s *PhoneVerificationService) {
		s.rememberer = r
	}
}

// WithIssuer sets the issuer shown by authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *PhoneVerificationService) {
		s.issuer = issuer
	}
}

func NewPhoneVerificationService(users UserStore, codes CodeGenerator, notifier Notifier, opts ...Option) *PhoneVerificationService {
	s := &PhoneVerificationService{
		users:    users,
		codes:    codes,
		notifier: notifier,
		issuer:   "simple-idp",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeCode strips the spaces and hyphens users type into codes.
func NormalizeCode(code string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// StartPhoneVerification texts a change-phone code bound to newPhone.
func (s *PhoneVerificationService) StartPhoneVerification(ctx context.Context, u *user.User, newPhone string) (string, error) {
	if strings.TrimSpace(newPhone) == "" {
		return "", idperrors.FieldInvalid(PhoneNumberField, msgPhoneRequired)
	}
	code, err := s.codes.GenerateChangePhoneNumberToken(ctx, u, newPhone)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return s.deliver(ctx, notification.SMSSystem, notification.PhoneVerifyCodeNotice, "ChangePhoneNumber", newPhone, code)
}

// CheckVerification reports whether code was issued for changing u's phone
// to phone.
func (s *PhoneVerificationService) CheckVerification(ctx context.Context, u *user.User, phone, code string) (bool, error) {
	ok, err := s.codes.VerifyChangePhoneNumberToken(ctx, u, NormalizeCode(code), phone)
	if err != nil {
		return false, fmt.Errorf("failed to verify code: %w", err)
	}
	s.metrics.CodeVerified("ChangePhoneNumber", ok)
	return ok, nil
}

// ConfirmPhoneFromVerification stores inputPhone as u's confirmed number
// once the code was verified. A failed update leaves u's in-memory changes
// in place.
func (s *PhoneVerificationService) ConfirmPhoneFromVerification(ctx context.Context, u *user.User, inputPhone string, verified bool) error {
	if !verified {
		return idperrors.New(idperrors.ErrCode2FAInvalid, msgConfirmFailed)
	}
	if inputPhone != u.PhoneNumber {
		s.users.SetPhoneNumber(u, inputPhone)
	}
	u.PhoneNumberConfirmed = true
	if err := s.update(ctx, u, msgConfirmPersist); err != nil {
		return err
	}
	slog.Info("Phone number confirmed", "user_id", u.ID)
	return nil
}

// EnablePhone2FaSend texts an enrolment code to the user's stored number.
// No flag changes until VerifyEnablePhone2Fa succeeds.
func (s *PhoneVerificationService) EnablePhone2FaSend(ctx context.Context, u *user.User, phone string) (string, error) {
	if phone != u.PhoneNumber {
		slog.Warn("Phone number does not match user", "user_id", u.ID)
		return "", idperrors.FieldInvalid(PhoneNumberField, msgPhoneMismatch)
	}
	if u.PhoneNumber == "" {
		return "", idperrors.FieldInvalid(PhoneNumberField, msgPhoneRequired)
	}
	code, err := s.codes.GenerateChangePhoneNumberToken(ctx, u, u.PhoneNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate enrolment code: %w", err)
	}
	return s.deliver(ctx, notification.SMSSystem, notification.EnablePhone2FACodeNotice, "ChangePhoneNumber", u.PhoneNumber, code)
}

// VerifyEnablePhone2Fa turns the phone factor on when code matches the one
// sent by EnablePhone2FaSend.
func (s *PhoneVerificationService) VerifyEnablePhone2Fa(ctx context.Context, u *user.User, code string) error {
	ok, err := s.CheckVerification(ctx, u, u.PhoneNumber, code)
	if err != nil {
		return err
	}
	if !ok {
		return idperrors.FieldInvalid(CodeField, msgCodeInvalid)
	}
	u.EnableFactor(user.FactorPhone)
	if err := s.update(ctx, u, "Phone 2FA could not be enabled, please try again"); err != nil {
		return err
	}
	slog.Info("Phone 2FA enabled", "user_id", u.ID)
	return nil
}

// DisablePhone2Fa turns the phone factor off. Two-factor stays on while
// another factor is enrolled.
func (s *PhoneVerificationService) DisablePhone2Fa(ctx context.Context, u *user.User) error {
	if !u.TwoFactorEnabled {
		return idperrors.PreconditionFailed(msgTwoFaNotEnabled)
	}
	u.DisableFactor(user.FactorPhone)
	if err := s.update(ctx, u, "Phone 2FA could not be disabled, please try again"); err != nil {
		return err
	}
	slog.Info("Phone 2FA disabled", "user_id", u.ID, "two_factor_enabled", u.TwoFactorEnabled)
	return nil
}

// Send2FaChallenge texts a sign-in code. An empty phone means the stored one.
func (s *PhoneVerificationService) Send2FaChallenge(ctx context.Context, u *user.User, phone string) (string, error) {
	if phone == "" {
		phone = u.PhoneNumber
	}
	if phone == "" {
		return "", idperrors.PreconditionFailed("No phone number on file")
	}
	code, err := s.codes.Generate(ctx, tokenprovider.PurposePhone, u)
	if err != nil {
		return "", fmt.Errorf("failed to generate sign-in code: %w", err)
	}
	return s.deliver(ctx, notification.SMSSystem, notification.TwofaCodeNotice, string(tokenprovider.PurposePhone), phone, code)
}

// Send2FaEmailChallenge mails a sign-in code to the user's address.
func (s *PhoneVerificationService) Send2FaEmailChallenge(ctx context.Context, u *user.User) (string, error) {
	if u.Email == "" {
		return "", idperrors.PreconditionFailed("No email address on file")
	}
	if !s.notifier.HasNotifier(notification.EmailSystem) {
		return "", idperrors.PreconditionFailed("Email delivery is not configured")
	}
	code, err := s.codes.Generate(ctx, tokenprovider.PurposeEmail, u)
	if err != nil {
		return "", fmt.Errorf("failed to generate sign-in code: %w", err)
	}
	return s.deliver(ctx, notification.EmailSystem, notification.TwofaCodeNotice, string(tokenprovider.PurposeEmail), u.Email, code)
}

// StartEmailConfirmation mails a code bound to the user's current address.
func (s *PhoneVerificationService) StartEmailConfirmation(ctx context.Context, u *user.User) (string, error) {
	if u.Email == "" {
		return "", idperrors.PreconditionFailed("No email address on file")
	}
	if u.EmailConfirmed {
		return "", idperrors.PreconditionFailed("Email address is already confirmed")
	}
	if !s.notifier.HasNotifier(notification.EmailSystem) {
		return "", idperrors.PreconditionFailed("Email delivery is not configured")
	}
	code, err := s.codes.Generate(ctx, tokenprovider.ConfirmEmailPurpose(u.Email), u)
	if err != nil {
		return "", fmt.Errorf("failed to generate email code: %w", err)
	}
	return s.deliver(ctx, notification.EmailSystem, notification.EmailVerifyCodeNotice, "ConfirmEmail", u.Email, code)
}

// ConfirmEmail marks the address confirmed when code matches the one sent
// by StartEmailConfirmation. A code sent to a previous address fails.
func (s *PhoneVerificationService) ConfirmEmail(ctx context.Context, u *user.User, code string) error {
	ok, err := s.codes.Verify(ctx, tokenprovider.ConfirmEmailPurpose(u.Email), u, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	s.metrics.CodeVerified("ConfirmEmail", ok)
	if !ok {
		return idperrors.FieldInvalid(CodeField, msgCodeInvalid)
	}
	u.EmailConfirmed = true
	if err := s.update(ctx, u, "Email address could not be confirmed, please try again"); err != nil {
		return err
	}
	slog.Info("Email address confirmed", "user_id", u.ID)
	return nil
}

func (s *PhoneVerificationService) EnableEmail2Fa(ctx context.Context, u *user.User) error {
	if u.Email == "" || !u.EmailConfirmed {
		return idperrors.PreconditionFailed("Confirm your email address before enabling email 2FA")
	}
	u.EnableFactor(user.FactorEmail)
	return s.update(ctx, u, "Email 2FA could not be enabled, please try again")
}

func (s *PhoneVerificationService) DisableEmail2Fa(ctx context.Context, u *user.User) error {
	if !u.Email2FAEnabled {
		return idperrors.PreconditionFailed("Email 2FA is not enabled")
	}
	u.DisableFactor(user.FactorEmail)
	return s.update(ctx, u, "Email 2FA could not be disabled, please try again")
}

func (s *PhoneVerificationService) deliver(ctx context.Context, system notification.NotificationSystem, noticeType notification.NoticeType, purpose, to, code string) (string, error) {
	ack, err := s.notifier.Send(ctx, noticeType, system, notification.NotificationData{
		To:   to,
		Data: map[string]string{"Code": code},
	})
	s.metrics.CodeSent(string(system), purpose, err)
	if err != nil {
		var gwErr *smsgateway.GatewayError
		if errors.As(err, &gwErr) {
			slog.Warn("Gateway rejected message", "notice", noticeType, "status", gwErr.StatusCode, "reason", gwErr.Reason)
			return "", idperrors.GatewayFailed(err, gwErr.Reason)
		}
		slog.Error("Failed to deliver message", "notice", noticeType, "system", system, "err", err)
		return "", idperrors.GatewayFailed(err, msgDeliveryFailed)
	}
	slog.Info("Message sent", "notice", noticeType, "system", system)
	return ack, nil
}

func (s *PhoneVerificationService) update(ctx context.Context, u *user.User, message string) error {
	result := s.users.Update(ctx, u)
	if result.Succeeded {
		return nil
	}
	return idperrors.PersistenceFailed(errors.New(strings.Join(result.Errors, "; ")), message)
}
