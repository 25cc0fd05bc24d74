package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-idp/pkg/client"
	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/smsgateway"
	"github.com/tendant/simple-idp/pkg/twofa"
	"github.com/tendant/simple-idp/pkg/user"
)

const (
	msgSendFailed      = "There was an error sending the verification code, please check the phone number is correct and try again"
	msgConfirmFailed   = "There was an error confirming the code, please check the verification code is correct and try again"
	msgBrowserForgot   = "The current browser has been forgotten. When you login again from this browser you will be prompted for your 2fa code."
	msgPhone2FaOff     = "2fa has been disabled. You can reenable 2fa when you setup a second factor"
	msgPhone2FaOn      = "Phone 2FA has been enabled."
	msgEmailConfirmed  = "Your email address has been confirmed."
	msgEmail2FaOn      = "Email 2FA has been enabled."
	msgEmail2FaOff     = "Email 2FA has been disabled."
	msgAuthenticatorOn = "Your authenticator app has been verified."
	msgAuthenticatorOf = "Your authenticator app has been removed."
)

// UserLoader finds the signed-in user.
type UserLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type ClientForgetter interface {
	ForgetTwoFactorClient(w http.ResponseWriter)
}

// Handler serves the phone verification and account 2FA endpoints for the
// signed-in user.
type Handler struct {
	users        UserLoader
	service      *twofa.PhoneVerificationService
	forget       ClientForgetter
	validate     *validator.Validate
	sendThrottle func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSendThrottle guards the endpoints that text a code.
func WithSendThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.sendThrottle = mw
	}
}

func NewHandler(users UserLoader, service *twofa.PhoneVerificationService, forget ClientForgetter, opts ...Option) *Handler {
	h := &Handler{
		users:        users,
		service:      service,
		forget:       forget,
		validate:     validator.New(),
		sendThrottle: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

// RegisterRoutes adds the account endpoints to r, which must already run
// client.RequireAuth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.sendThrottle).Post("/phone/verify", h.VerifyPhone)
	r.Post("/phone/confirm", h.ConfirmPhone)

	r.Route("/manage", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Get("/2fa", h.GetTwoFactorStatus)
		r.Post("/2fa/forget-client", h.ForgetClient)

		r.Get("/phone2fa/enable", h.GetEnablePhone2Fa)
		r.With(h.sendThrottle).Post("/phone2fa/enable", h.EnablePhone2Fa)
		r.Post("/phone2fa/verify", h.VerifyPhone2Fa)
		r.Post("/phone2fa/disable", h.DisablePhone2Fa)

		r.With(h.sendThrottle).Post("/email/verify", h.VerifyEmail)
		r.Post("/email/confirm", h.ConfirmEmail)

		r.Post("/email2fa/enable", h.EnableEmail2Fa)
		r.Post("/email2fa/disable", h.DisableEmail2Fa)

		r.Post("/authenticator", h.GenerateAuthenticator)
		r.Post("/authenticator/verify", h.VerifyAuthenticator)
		r.Post("/authenticator/disable", h.DisableAuthenticator)
	})
}

// VerifyPhone handles POST /phone/verify
func (h *Handler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req PhoneNumberRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	ack, err := h.service.StartPhoneVerification(r.Context(), u, req.PhoneNumber)
	if err != nil {
		idperrors.RenderError(w, r, sendError(err))
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Verification code sent.", Ack: ack})
}

// ConfirmPhone handles POST /phone/confirm
func (h *Handler) ConfirmPhone(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPhoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	verified, err := h.service.CheckVerification(r.Context(), u, req.PhoneNumber, req.Code)
	if err != nil {
		idperrors.RenderError(w, r, idperrors.Wrap(err, idperrors.ErrCodeInternal, msgConfirmFailed))
		return
	}
	if err := h.service.ConfirmPhoneFromVerification(r.Context(), u, req.PhoneNumber, verified); err != nil {
		idperrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Phone number confirmed."})
}

// GetProfile handles GET /manage
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var resp ProfileResponse
	if err := copier.Copy(&resp, u); err != nil {
		idperrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// GetTwoFactorStatus handles GET /manage/2fa
func (h *Handler) GetTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, h.service.TwoFactorStatus(u, r))
}

// ForgetClient handles POST /manage/2fa/forget-client
func (h *Handler) ForgetClient(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}
	h.forget.ForgetTwoFactorClient(w)
	render.JSON(w, r, MessageResponse{Message: msgBrowserForgot})
}

// GetEnablePhone2Fa handles GET /manage/phone2fa/enable
func (h *Handler) GetEnablePhone2Fa(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, PhoneNumberRequest{PhoneNumber: u.PhoneNumber})
}

// EnablePhone2Fa handles POST /manage/phone2fa/enable
func (h *Handler) EnablePhone2Fa(w http.ResponseWriter, r *http.Request) {
	var req PhoneNumberRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ack, err := h.service.EnablePhone2FaSend(r.Context(), u, req.PhoneNumber)
	if err != nil {
		idperrors.RenderError(w, r, sendError(err))
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Verification code sent.", Ack: ack})
}

// VerifyPhone2Fa handles POST /manage/phone2fa/verify
func (h *Handler) VerifyPhone2Fa(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withUser(w, r, func(u *user.User) error {
		return h.service.VerifyEnablePhone2Fa(r.Context(), u, req.Code)
	}, msgPhone2FaOn)
}

// DisablePhone2Fa handles POST /manage/phone2fa/disable
func (h *Handler) DisablePhone2Fa(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(u *user.User) error {
		return h.service.DisablePhone2Fa(r.Context(), u)
	}, msgPhone2FaOff)
}

// VerifyEmail handles POST /manage/email/verify
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ack, err := h.service.StartEmailConfirmation(r.Context(), u)
	if err != nil {
		idperrors.RenderError(w, r, sendError(err))
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Verification code sent.", Ack: ack})
}

// ConfirmEmail handles POST /manage/email/confirm
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withUser(w, r, func(u *user.User) error {
		return h.service.ConfirmEmail(r.Context(), u, req.Code)
	}, msgEmailConfirmed)
}

// EnableEmail2Fa handles POST /manage/email2fa/enable
func (h *Handler) EnableEmail2Fa(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(u *user.User) error {
		return h.service.EnableEmail2Fa(r.Context(), u)
	}, msgEmail2FaOn)
}

// DisableEmail2Fa handles POST /manage/email2fa/disable
func (h *Handler) DisableEmail2Fa(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(u *user.User) error {
		return h.service.DisableEmail2Fa(r.Context(), u)
	}, msgEmail2FaOff)
}

// GenerateAuthenticator handles POST /manage/authenticator
func (h *Handler) GenerateAuthenticator(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	setup, err := h.service.GenerateAuthenticatorKey(r.Context(), u)
	if err != nil {
		idperrors.RenderError(w, r, err)
		return
	}
	var resp AuthenticatorResponse
	if err := copier.Copy(&resp, setup); err != nil {
		idperrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// VerifyAuthenticator handles POST /manage/authenticator/verify
func (h *Handler) VerifyAuthenticator(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withUser(w, r, func(u *user.User) error {
		return h.service.EnableAuthenticator(r.Context(), u, req.Code)
	}, msgAuthenticatorOn)
}

// DisableAuthenticator handles POST /manage/authenticator/disable
func (h *Handler) DisableAuthenticator(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(u *user.User) error {
		return h.service.DisableAuthenticator(r.Context(), u)
	}, msgAuthenticatorOf)
}

func (h *Handler) withUser(w http.ResponseWriter, r *http.Request, fn func(u *user.User) error, message string) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := fn(u); err != nil {
		idperrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: message})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		slog.Error("Failed getting AuthUser", "ok", ok)
		idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeUnauthorized, http.StatusText(http.StatusUnauthorized)))
		return nil, false
	}
	u, err := h.users.FindByID(r.Context(), authUser.UserUuid)
	if errors.Is(err, user.ErrUserNotFound) {
		idperrors.RenderError(w, r, idperrors.NotFound("user", authUser.UserId))
		return nil, false
	}
	if err != nil {
		idperrors.RenderError(w, r, err)
		return nil, false
	}
	return u, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		idperrors.RenderError(w, r, idperrors.New(idperrors.ErrCodeValidationFailed, "Invalid request body"))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		idperrors.RenderError(w, r, idperrors.FromValidation(err, fieldNames))
		return false
	}
	return true
}

// sendError prefixes gateway rejections with what the user was doing.
func sendError(err error) error {
	var gwErr *smsgateway.GatewayError
	if errors.As(err, &gwErr) {
		return idperrors.GatewayFailed(err, "There was an error sending the verification code: "+gwErr.Reason)
	}
	if idperrors.IsCode(err, idperrors.ErrCodeGatewayFailed) {
		return idperrors.GatewayFailed(err, msgSendFailed)
	}
	return err
}
