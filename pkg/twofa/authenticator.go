package twofa

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/user"
	"github.com/xlzd/gotp"
)

const qrCodeSize = 200

// AuthenticatorSetup is shown once while the user scans the key.
type AuthenticatorSetup struct {
	SharedKey        string `json:"shared_key"`
	AuthenticatorURI string `json:"authenticator_uri"`
	QRCodePNG        []byte `json:"qr_code_png"`
}

// GenerateAuthenticatorKey stores a fresh authenticator key for u. The
// factor stays off until EnableAuthenticator sees a code from the app.
func (s *PhoneVerificationService) GenerateAuthenticatorKey(ctx context.Context, u *user.User) (*AuthenticatorSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: u.UserName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate authenticator key: %w", err)
	}
	secret := key.Secret()
	uri := gotp.NewDefaultTOTP(secret).ProvisioningUri(u.UserName, s.issuer)

	qr, err := qrCode(uri)
	if err != nil {
		return nil, err
	}

	// a new key needs a fresh proof before the factor counts again
	u.AuthenticatorKey = secret
	u.DisableFactor(user.FactorAuthenticator)
	if err := s.update(ctx, u, "Authenticator key could not be saved, please try again"); err != nil {
		return nil, err
	}
	return &AuthenticatorSetup{
		SharedKey:        formatKey(secret),
		AuthenticatorURI: uri,
		QRCodePNG:        qr,
	}, nil
}

// EnableAuthenticator turns the authenticator factor on once the app proves
// it holds the key.
func (s *PhoneVerificationService) EnableAuthenticator(ctx context.Context, u *user.User, code string) error {
	if u.AuthenticatorKey == "" {
		return idperrors.PreconditionFailed("Generate an authenticator key first")
	}
	ok, err := s.codes.VerifyAuthenticatorCode(ctx, u, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("failed to verify authenticator code: %w", err)
	}
	s.metrics.CodeVerified("Authenticator", ok)
	if !ok {
		return idperrors.FieldInvalid(CodeField, msgCodeInvalid)
	}
	u.EnableFactor(user.FactorAuthenticator)
	if err := s.update(ctx, u, "Authenticator could not be enabled, please try again"); err != nil {
		return err
	}
	slog.Info("Authenticator 2FA enabled", "user_id", u.ID)
	return nil
}

// DisableAuthenticator forgets the key and turns the factor off.
func (s *PhoneVerificationService) DisableAuthenticator(ctx context.Context, u *user.User) error {
	if u.AuthenticatorKey == "" && !u.AuthenticatorApp2FAEnabled {
		return idperrors.PreconditionFailed("No authenticator is configured")
	}
	u.AuthenticatorKey = ""
	u.DisableFactor(user.FactorAuthenticator)
	return s.update(ctx, u, "Authenticator could not be disabled, please try again")
}

func qrCode(uri string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse provisioning uri: %w", err)
	}
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}

// formatKey splits the key into lower-case groups of four for manual entry.
func formatKey(secret string) string {
	secret = strings.ToLower(secret)
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
