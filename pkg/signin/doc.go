// Package signin owns the browser side of authentication: the password
// step, the pending second-factor step and the cookies that tie them together.
//
// Three HS256 cookies are issued, each tagged with its own token type:
//
//   - jwt: the application session, verified by go-chi/jwtauth middleware
//   - idp_2fa_pending: who passed the password step, valid for a few minutes
//   - idp_2fa_remember: "don't ask again on this browser", bound to the
//     user's security stamp
//
// Failed password or code attempts count towards lockout through the
// UserStore; a locked-out user gets SignInResult.IsLockedOut.
package signin
