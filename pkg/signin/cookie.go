package signin

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName is the cookie jwtauth.TokenFromCookie reads.
	SessionCookieName  = "jwt"
	PendingCookieName  = "idp_2fa_pending"
	RememberCookieName = "idp_2fa_remember"
)

type CookieSetter interface {
	// SetCookie writes a cookie. A zero expire makes it a browser-session cookie.
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time)
	ClearCookie(w http.ResponseWriter, name string)
}

type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func NewCookieSetter(httpOnly, secure bool) *BaseCookieSetter {
	return &BaseCookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    value,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
