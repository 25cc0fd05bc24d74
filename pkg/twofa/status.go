package twofa

import (
	"net/http"

	"github.com/tendant/simple-idp/pkg/user"
)

// Status is what the account pages show about a user's second factors.
type Status struct {
	HasAuthenticator    bool `json:"has_authenticator"`
	IsAuthenticator2Fa  bool `json:"is_authenticator_2fa_enabled"`
	IsPhone2FaEnabled   bool `json:"is_phone_2fa_enabled"`
	IsPhone2FaConfirmed bool `json:"is_phone_2fa_confirmed"`
	IsEmail2FaEnabled   bool `json:"is_email_2fa_enabled"`
	Is2FaEnabled        bool `json:"is_2fa_enabled"`
	IsMachineRemembered bool `json:"is_machine_remembered"`
}

func (s *PhoneVerificationService) TwoFactorStatus(u *user.User, r *http.Request) Status {
	status := Status{
		HasAuthenticator:    u.AuthenticatorKey != "",
		IsAuthenticator2Fa:  u.AuthenticatorApp2FAEnabled,
		IsPhone2FaEnabled:   u.Phone2FAEnabled,
		IsPhone2FaConfirmed: u.PhoneNumberConfirmed,
		IsEmail2FaEnabled:   u.Email2FAEnabled,
		Is2FaEnabled:        u.TwoFactorEnabled,
	}
	if s.rememberer != nil && r != nil {
		status.IsMachineRemembered = s.rememberer.IsTwoFactorClientRemembered(r, u)
	}
	return status
}
