// Package loginflow runs the second step of a browser sign-in.
//
// After signin.SignInManager.PasswordSignIn reports RequiresTwoFactor, the
// browser carries a short-lived pending cookie. TwoFactorGate reads it and
// moves the sign-in through these states:
//
//	AwaitingFactorChoice --Verify(valid code)--> Succeeded
//	AwaitingFactorChoice --Verify(bad code)----> AwaitingCode
//	AwaitingCode         --Verify(lockout)-----> LockedOut
//	any                  --SendSms/SendEmail/UseAuthenticator--> AwaitingFactorChoice
//
// Automatic delivery on Enter follows authenticator > phone > email: no SMS
// is sent when an authenticator app is enrolled, no email when phone is.
// Which factor a submitted code is checked against is decided by
// ResolveFactor.
//
// Every invalid code produces the same "Invalid code." error regardless of
// the factor tried.
package loginflow
