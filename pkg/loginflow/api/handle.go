package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/loginflow"
	"github.com/tendant/simple-idp/pkg/signin"
)

const msgInvalidLogin = "Invalid login attempt."

// PasswordSignIn is the first-factor half of the sign-in manager.
type PasswordSignIn interface {
	PasswordSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, userName, password string, rememberMe bool) (signin.SignInResult, error)
	PendingRememberMe(r *http.Request) bool
	SignOut(w http.ResponseWriter)
}

type Handler struct {
	signIn        PasswordSignIn
	gate          *loginflow.TwoFactorGate
	validate      *validator.Validate
	loginThrottle func(http.Handler) http.Handler
	sendThrottle  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithLoginThrottle guards password and code submissions.
func WithLoginThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.loginThrottle = mw
	}
}

// WithSendThrottle guards the gate actions that deliver a code.
func WithSendThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.sendThrottle = mw
	}
}

func NewHandler(signIn PasswordSignIn, gate *loginflow.TwoFactorGate, opts ...Option) *Handler {
	h := &Handler{
		signIn:        signIn,
		gate:          gate,
		validate:      validator.New(),
		loginThrottle: passthrough,
		sendThrottle:  passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

// RegisterRoutes adds the anonymous sign-in endpoints to r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.loginThrottle).Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Route("/login/2fa", func(r chi.Router) {
		r.With(h.sendThrottle).Get("/", h.Enter)
		r.With(h.loginThrottle).Post("/", h.Verify)
		r.With(h.sendThrottle).Post("/send-sms", h.gateAction(h.gate.SendSms))
		r.With(h.sendThrottle).Post("/send-email", h.gateAction(h.gate.SendEmail))
		r.Post("/use-authenticator", h.gateAction(h.gate.UseAuthenticator))
	})
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Error("Failed to decode login request", "err", err)
		idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeValidationFailed, "Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		idperrors.RenderError(w, r, idperrors.FromValidation(err, fieldNames))
		return
	}

	result, err := h.signIn.PasswordSignIn(r.Context(), w, r, req.UserName, req.Password, req.RememberMe)
	if err != nil {
		idperrors.RenderError(w, r, err)
		return
	}

	switch {
	case result.Succeeded:
		slog.Info("User logged in", "user_name", req.UserName)
		render.JSON(w, r, LoginResponse{Succeeded: true, RedirectURL: loginflow.LocalReturnURL(req.ReturnURL)})
	case result.RequiresTwoFactor:
		render.JSON(w, r, LoginResponse{RequiresTwoFactor: true, RedirectURL: twoFactorURL(req.RememberMe, req.ReturnURL)})
	case result.IsLockedOut:
		slog.Warn("User account locked out", "user_name", req.UserName)
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, LoginResponse{LockedOut: true, RedirectURL: loginflow.LockoutPath})
	default:
		idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeInvalidCredentials, msgInvalidLogin))
	}
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.signIn.SignOut(w)
	w.WriteHeader(http.StatusNoContent)
}

// Enter handles GET /login/2fa
func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	h.gateAction(h.gate.Enter)(w, r)
}

// Verify handles POST /login/2fa
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var input loginflow.Input
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		slog.Error("Failed to decode two-factor request", "err", err)
		idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeValidationFailed, "Invalid request body"))
		return
	}
	rememberMe, returnURL := h.flowParams(r)

	outcome, err := h.gate.Verify(r.Context(), w, r, input, rememberMe, returnURL)
	if err != nil {
		resp := idperrors.NewErrorResponse(err)
		if outcome.View == nil {
			idperrors.RenderError(w, r, err)
			return
		}
		render.Status(r, idperrors.MapErrorCodeToHTTPStatus(resp.Code))
		render.JSON(w, r, GateResponse{Outcome: outcome, Error: &resp})
		return
	}
	if outcome.State == loginflow.LockedOut {
		render.Status(r, http.StatusForbidden)
	}
	render.JSON(w, r, GateResponse{Outcome: outcome})
}

type viewFunc func(ctx context.Context, r *http.Request, rememberMe bool, returnURL string) (loginflow.View, error)

func (h *Handler) gateAction(fn viewFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rememberMe, returnURL := h.flowParams(r)
		view, err := fn(r.Context(), r, rememberMe, returnURL)
		if err != nil {
			idperrors.RenderError(w, r, err)
			return
		}
		render.JSON(w, r, view)
	}
}

// flowParams reads rememberMe and returnUrl from the query. rememberMe
// falls back to the choice made at the password step.
func (h *Handler) flowParams(r *http.Request) (bool, string) {
	query := r.URL.Query()
	rememberMe, err := strconv.ParseBool(query.Get("rememberMe"))
	if err != nil {
		rememberMe = h.signIn.PendingRememberMe(r)
	}
	return rememberMe, query.Get("returnUrl")
}

func twoFactorURL(rememberMe bool, returnURL string) string {
	q := url.Values{}
	q.Set("rememberMe", strconv.FormatBool(rememberMe))
	q.Set("returnUrl", loginflow.LocalReturnURL(returnURL))
	return "/account/login/2fa?" + q.Encode()
}
