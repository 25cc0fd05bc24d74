package user

import (
	"encoding/base32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnableDisableFactorKeepsOverallFlag(t *testing.T) {
	tests := []struct {
		name        string
		user        User
		disable     Factor
		wantOverall bool
	}{
		{
			name:        "last factor clears overall flag",
			user:        User{TwoFactorEnabled: true, Phone2FAEnabled: true},
			disable:     FactorPhone,
			wantOverall: false,
		},
		{
			name:        "authenticator keeps overall flag",
			user:        User{TwoFactorEnabled: true, Phone2FAEnabled: true, AuthenticatorApp2FAEnabled: true},
			disable:     FactorPhone,
			wantOverall: true,
		},
		{
			name:        "email keeps overall flag",
			user:        User{TwoFactorEnabled: true, Phone2FAEnabled: true, Email2FAEnabled: true},
			disable:     FactorPhone,
			wantOverall: true,
		},
		{
			name:        "passkeys keep overall flag",
			user:        User{TwoFactorEnabled: true, Phone2FAEnabled: true, Passkeys2FAEnabled: true},
			disable:     FactorPhone,
			wantOverall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			u.DisableFactor(tt.disable)
			assert.False(t, u.FactorEnabled(tt.disable))
			assert.Equal(t, tt.wantOverall, u.TwoFactorEnabled)
			assert.Equal(t, u.HasAnyFactor(), u.TwoFactorEnabled)
		})
	}
}

func TestEnableFactorSetsOverallFlag(t *testing.T) {
	var u User
	u.EnableFactor(FactorEmail)
	assert.True(t, u.Email2FAEnabled)
	assert.True(t, u.TwoFactorEnabled)

	u.EnableFactor(Factor("carrier-pigeon"))
	assert.Equal(t, []Factor{FactorEmail}, u.EnabledFactors())
}

func TestEnabledFactorsPrecedence(t *testing.T) {
	u := User{Phone2FAEnabled: true, Email2FAEnabled: true, AuthenticatorApp2FAEnabled: true}
	assert.Equal(t, []Factor{FactorAuthenticator, FactorPhone, FactorEmail}, u.EnabledFactors())
}

func TestIsLockedOut(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.True(t, (&User{LockoutEnabled: true, LockoutEnd: &future}).IsLockedOut(now))
	assert.False(t, (&User{LockoutEnabled: true, LockoutEnd: &past}).IsLockedOut(now))
	assert.False(t, (&User{LockoutEnabled: false, LockoutEnd: &future}).IsLockedOut(now))
	assert.False(t, (&User{LockoutEnabled: true}).IsLockedOut(now))
}

func TestNewSecurityStamp(t *testing.T) {
	a, b := NewSecurityStamp(), NewSecurityStamp()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	_, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(a)
	assert.NoError(t, err)
}
