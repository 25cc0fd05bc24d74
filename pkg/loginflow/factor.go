package loginflow

import "github.com/tendant/simple-idp/pkg/user"

// AuthMethod is the factor the user explicitly picked on the second-factor
// page. The zero value means "highest-precedence enabled factor".
type AuthMethod string

const (
	MethodDefault AuthMethod = ""
	MethodPhone   AuthMethod = "Phone"
	MethodEmail   AuthMethod = "Email"
)

// ResolveFactor picks the factor a submitted code is checked against.
// First match wins:
//
//  1. authenticator enabled and method is neither Phone nor Email
//  2. phone enabled and method is not Email
//  3. email enabled
func ResolveFactor(u *user.User, method AuthMethod) (user.Factor, bool) {
	switch {
	case u.AuthenticatorApp2FAEnabled && method != MethodPhone && method != MethodEmail:
		return user.FactorAuthenticator, true
	case u.Phone2FAEnabled && method != MethodEmail:
		return user.FactorPhone, true
	case u.Email2FAEnabled:
		return user.FactorEmail, true
	}
	return "", false
}

// autoSend reports which channels get a fresh code when the second-factor
// page is first shown. SMS is skipped when an authenticator app is enrolled;
// email is skipped when phone is enrolled.
func autoSend(u *user.User) (sms, email bool) {
	sms = u.Phone2FAEnabled && !u.AuthenticatorApp2FAEnabled
	email = u.Email2FAEnabled && !u.Phone2FAEnabled
	return sms, email
}
