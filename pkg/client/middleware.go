package client

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

// RequireAuth chains Verifier, jwtauth.Authenticator and AuthUserMiddleware.
// Anonymous requests get 401.
func RequireAuth(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Verifier(ja)(jwtauth.Authenticator(ja)(AuthUserMiddleware(next)))
	}
}
