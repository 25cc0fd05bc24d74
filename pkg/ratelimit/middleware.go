package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tendant/simple-idp/pkg/client"
	idperrors "github.com/tendant/simple-idp/pkg/errors"
)

const msgRateLimited = "Too many requests. Please try again later."

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// Middleware answers 429 with a Retry-After header once key's bucket is empty.
func Middleware(l *Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if ok, wait := l.Allow(k); !ok {
				slog.Warn("Rate limit exceeded", "key", k, "path", r.URL.Path, "method", r.Method)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeRateLimited, msgRateLimited))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys on the client address, honouring X-Forwarded-For and X-Real-IP.
func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByUser keys on the signed-in user and falls back to the client address.
func ByUser(r *http.Request) string {
	if authUser, ok := client.GetAuthUser(r); ok {
		return "user:" + authUser.UserId
	}
	return ByIP(r)
}

func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
