// Package securityheaders builds the response-header policy and the CORS
// middleware for the identity provider.
//
// The Policy is built once at startup and injected into Middleware.
package securityheaders

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const hstsMaxAge = 60 * 60 * 24 * 365

const permissionsPolicy = "accelerometer=(), autoplay=(), camera=(), display-capture=(), " +
	"encrypted-media=(), fullscreen=(), geolocation=(), gyroscope=(), magnetometer=(), " +
	"microphone=(), midi=(), payment=(), picture-in-picture=(), publickey-credentials-get=(), " +
	"screen-wake-lock=(), sync-xhr=(), usb=(), xr-spatial-tracking=()"

// Policy is a fixed set of response headers.
type Policy struct {
	headers http.Header
}

// NewPolicy builds the header policy. Form posts may target the IdP itself
// and the client UI. HSTS is left out in development.
func NewPolicy(isDev bool, idpHost, clientUI string) (*Policy, error) {
	if strings.TrimSpace(idpHost) == "" {
		return nil, fmt.Errorf("idp host is required")
	}
	if strings.TrimSpace(clientUI) == "" {
		return nil, fmt.Errorf("client ui origin is required")
	}

	csp := strings.Join([]string{
		"object-src 'none'",
		"block-all-mixed-content",
		"img-src 'self' data:",
		fmt.Sprintf("form-action 'self' %s %s", idpHost, clientUI),
		"font-src 'self'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self' 'unsafe-inline'",
	}, "; ")

	h := http.Header{}
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Content-Security-Policy", csp)
	h.Set("Permissions-Policy", permissionsPolicy)
	if !isDev {
		h.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", hstsMaxAge))
	}
	return &Policy{headers: h}, nil
}

// Headers returns a copy of the policy's headers.
func (p *Policy) Headers() http.Header {
	return p.headers.Clone()
}

// Middleware applies the policy to every response and drops the Server
// header.
func Middleware(p *Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, values := range p.headers {
				h[name] = values
			}
			h.Del("Server")
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows credentialed requests from the configured origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
