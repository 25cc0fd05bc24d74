package signin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeSession marks the application session cookie. Middleware
// verifying the "jwt" cookie must reject every other type.
const TokenTypeSession = "session"

const (
	tokenTypePending  = "2fa_pending"
	tokenTypeRemember = "2fa_remember"
)

// Claims is shared by the three cookies; TokenType tells them apart so one
// can never be replayed as another.
type Claims struct {
	TokenType  string   `json:"typ"`
	UserName   string   `json:"username,omitempty"`
	RememberMe bool     `json:"remember_me,omitempty"`
	StampHash  string   `json:"stamp,omitempty"`
	AMR        []string `json:"amr,omitempty"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func (t *tokenIssuer) issue(tokenType, subject string, expiry time.Duration, claims Claims) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(expiry)
	claims.TokenType = tokenType
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

func (t *tokenIssuer) parse(tokenType, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	return claims, nil
}

// stampHash binds a remember-client cookie to the security stamp without
// putting the stamp itself in the cookie.
func stampHash(securityStamp string) string {
	sum := sha256.Sum256([]byte(securityStamp))
	return hex.EncodeToString(sum[:16])
}
