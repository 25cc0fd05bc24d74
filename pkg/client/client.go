package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-idp/pkg/signin"
)

// AuthUser is the signed-in user as read from the session cookie.
type AuthUser struct {
	UserId    string   `json:"sub,omitempty"`
	UserName  string   `json:"username,omitempty"`
	TokenType string   `json:"typ,omitempty"`
	AMR       []string `json:"amr,omitempty"`
	UserUuid  uuid.UUID
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
		slog.Any("amr", i.AMR),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "idp context value " + k.name
}

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// Verifier reads the session token from the Authorization header or the
// "jwt" cookie.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)
}

// AuthUserMiddleware turns verified session claims into an *AuthUser on the
// request context. Must be used after Verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if claims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		// pending and remember-client tokens share the signing key
		if authUser.TokenType != signin.TokenTypeSession {
			slog.Warn("Rejected non-session token", "typ", authUser.TokenType)
			http.Error(w, "invalid token type", http.StatusUnauthorized)
			return
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUuid = userUUID

		slog.Debug("authenticated user", "auth_user", authUser)
		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the user put on the context by AuthUserMiddleware.
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	authUser, ok := r.Context().Value(AuthUserKey).(*AuthUser)
	return authUser, ok && authUser != nil
}
