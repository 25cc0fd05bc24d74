package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xlzd/gotp"
)

// Factor is a second factor a user can enroll.
type Factor string

const (
	FactorPhone         Factor = "phone"
	FactorEmail         Factor = "email"
	FactorAuthenticator Factor = "authenticator"
	FactorPasskeys      Factor = "passkeys"
)

// User is the identity record the second-factor flows read and mutate.
// TwoFactorEnabled is true exactly when at least one factor flag is true;
// use EnableFactor and DisableFactor to keep it that way.
type User struct {
	ID                         uuid.UUID  `json:"id"`
	UserName                   string     `json:"user_name"`
	Email                      string     `json:"email"`
	EmailConfirmed             bool       `json:"email_confirmed"`
	PasswordHash               string     `json:"password_hash"`
	PhoneNumber                string     `json:"phone_number"`
	PhoneNumberConfirmed       bool       `json:"phone_number_confirmed"`
	TwoFactorEnabled           bool       `json:"two_factor_enabled"`
	Phone2FAEnabled            bool       `json:"phone_2fa_enabled"`
	Email2FAEnabled            bool       `json:"email_2fa_enabled"`
	AuthenticatorApp2FAEnabled bool       `json:"authenticator_app_2fa_enabled"`
	Passkeys2FAEnabled         bool       `json:"passkeys_2fa_enabled"`
	AuthenticatorKey           string     `json:"authenticator_key,omitempty"`
	SecurityStamp              string     `json:"security_stamp"`
	ConcurrencyStamp           string     `json:"concurrency_stamp"`
	LockoutEnabled             bool       `json:"lockout_enabled"`
	LockoutEnd                 *time.Time `json:"lockout_end,omitempty"`
	AccessFailedCount          int        `json:"access_failed_count"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
}

func (u *User) flag(f Factor) *bool {
	switch f {
	case FactorPhone:
		return &u.Phone2FAEnabled
	case FactorEmail:
		return &u.Email2FAEnabled
	case FactorAuthenticator:
		return &u.AuthenticatorApp2FAEnabled
	case FactorPasskeys:
		return &u.Passkeys2FAEnabled
	}
	return nil
}

// FactorEnabled reports the per-factor flag. Unknown factors are never enabled.
func (u *User) FactorEnabled(f Factor) bool {
	if p := u.flag(f); p != nil {
		return *p
	}
	return false
}

// EnableFactor turns one factor on together with the overall flag.
func (u *User) EnableFactor(f Factor) {
	if p := u.flag(f); p != nil {
		*p = true
		u.TwoFactorEnabled = true
	}
}

// DisableFactor turns one factor off and clears the overall flag when no
// other factor is left.
func (u *User) DisableFactor(f Factor) {
	if p := u.flag(f); p != nil {
		*p = false
	}
	if !u.HasAnyFactor() {
		u.TwoFactorEnabled = false
	}
}

func (u *User) HasAnyFactor() bool {
	return u.Phone2FAEnabled || u.Email2FAEnabled || u.AuthenticatorApp2FAEnabled || u.Passkeys2FAEnabled
}

// EnabledFactors lists enabled factors in sign-in precedence order.
func (u *User) EnabledFactors() []Factor {
	var factors []Factor
	for _, f := range []Factor{FactorAuthenticator, FactorPhone, FactorEmail, FactorPasskeys} {
		if u.FactorEnabled(f) {
			factors = append(factors, f)
		}
	}
	return factors
}

func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// NormalizeUserName is the lookup key for user names.
func NormalizeUserName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewSecurityStamp returns a fresh random base32 stamp. Rotating the stamp
// invalidates every code and remembered-browser cookie derived from it.
func NewSecurityStamp() string {
	return gotp.RandomSecret(20)
}
