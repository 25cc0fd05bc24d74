package loginflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/metrics"
	"github.com/tendant/simple-idp/pkg/signin"
	"github.com/tendant/simple-idp/pkg/tokenprovider"
	"github.com/tendant/simple-idp/pkg/twofa"
	"github.com/tendant/simple-idp/pkg/user"
)

type State string

const (
	AwaitingFactorChoice State = "AwaitingFactorChoice"
	AwaitingCode         State = "AwaitingCode"
	Succeeded            State = "Succeeded"
	LockedOut            State = "LockedOut"
	Failed               State = "Failed"
)

const (
	TwoFactorCodeField = "Input.TwoFactorCode"
	LockoutPath        = "/account/lockout"

	minCodeLength = 4
	maxCodeLength = 7
)

const msgNoPendingUser = "Unable to load two-factor authentication user."

// SignInManager is the part of signin.SignInManager the gate drives.
type SignInManager interface {
	GetTwoFactorAuthenticationUser(ctx context.Context, r *http.Request) (*user.User, error)
	TwoFactorAuthenticatorSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, code string, isPersistent, rememberClient bool) (signin.SignInResult, error)
	TwoFactorSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, provider tokenprovider.Purpose, code string, isPersistent, rememberClient bool) (signin.SignInResult, error)
}

// ChallengeSender delivers sign-in codes; *twofa.PhoneVerificationService
// implements it.
type ChallengeSender interface {
	Send2FaChallenge(ctx context.Context, u *user.User, phone string) (string, error)
	Send2FaEmailChallenge(ctx context.Context, u *user.User) (string, error)
}

// View is what the second-factor page shows.
type View struct {
	State           State      `json:"state"`
	IsAuthenticator bool       `json:"is_authenticator"`
	IsPhone         bool       `json:"is_phone"`
	IsEmail         bool       `json:"is_email"`
	AuthMethod      AuthMethod `json:"auth_method"`
	CodeSentVia     []string   `json:"code_sent_via,omitempty"`
	DeliveryError   string     `json:"delivery_error,omitempty"`
	RememberMe      bool       `json:"remember_me"`
	ReturnURL       string     `json:"return_url,omitempty"`
}

type Input struct {
	TwoFactorCode   string     `json:"two_factor_code"`
	RememberMachine bool       `json:"remember_machine"`
	AuthMethod      AuthMethod `json:"auth_method"`
}

// Outcome of a code submission. RedirectURL is set for Succeeded and
// LockedOut; View is set when the user stays on the page.
type Outcome struct {
	State       State  `json:"state"`
	RedirectURL string `json:"redirect_url,omitempty"`
	View        *View  `json:"view,omitempty"`
}

// TwoFactorGate runs the second step of a sign-in that already passed the
// password check.
type TwoFactorGate struct {
	signIn  SignInManager
	sender  ChallengeSender
	metrics *metrics.Metrics
}

type Option func(*TwoFactorGate)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *TwoFactorGate) {
		g.metrics = m
	}
}

func NewTwoFactorGate(signIn SignInManager, sender ChallengeSender, opts ...Option) *TwoFactorGate {
	g := &TwoFactorGate{
		signIn: signIn,
		sender: sender,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enter shows the factor badges and sends a fresh code over the channel the
// user will most likely use. Delivery failures are reported on the view.
func (g *TwoFactorGate) Enter(ctx context.Context, r *http.Request, rememberMe bool, returnURL string) (View, error) {
	u, err := g.pendingUser(ctx, r)
	if err != nil {
		return View{}, err
	}
	view := g.display(u, MethodDefault, rememberMe, returnURL)
	sms, email := autoSend(u)
	if sms {
		g.sendSms(ctx, u, &view)
	}
	if email {
		g.sendEmail(ctx, u, &view)
	}
	return view, nil
}

// SendSms records phone as the chosen method and texts a fresh code.
func (g *TwoFactorGate) SendSms(ctx context.Context, r *http.Request, rememberMe bool, returnURL string) (View, error) {
	u, err := g.pendingUser(ctx, r)
	if err != nil {
		return View{}, err
	}
	view := g.display(u, MethodPhone, rememberMe, returnURL)
	g.sendSms(ctx, u, &view)
	return view, nil
}

// SendEmail records email as the chosen method and mails a fresh code.
func (g *TwoFactorGate) SendEmail(ctx context.Context, r *http.Request, rememberMe bool, returnURL string) (View, error) {
	u, err := g.pendingUser(ctx, r)
	if err != nil {
		return View{}, err
	}
	view := g.display(u, MethodEmail, rememberMe, returnURL)
	g.sendEmail(ctx, u, &view)
	return view, nil
}

// UseAuthenticator clears the chosen method so codes resolve to the
// authenticator app again.
func (g *TwoFactorGate) UseAuthenticator(ctx context.Context, r *http.Request, rememberMe bool, returnURL string) (View, error) {
	u, err := g.pendingUser(ctx, r)
	if err != nil {
		return View{}, err
	}
	return g.display(u, MethodDefault, rememberMe, returnURL), nil
}

// Verify checks a submitted code against the resolved factor and completes
// the sign-in. An invalid code keeps the user on the page with the generic
// "Invalid code." error.
func (g *TwoFactorGate) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request, input Input, rememberMe bool, returnURL string) (Outcome, error) {
	u, err := g.pendingUser(ctx, r)
	if err != nil {
		return Outcome{State: Failed}, err
	}
	stay := func() Outcome {
		view := g.display(u, input.AuthMethod, rememberMe, returnURL)
		view.State = AwaitingCode
		return Outcome{State: AwaitingCode, View: &view}
	}

	if err := validateCode(input.TwoFactorCode); err != nil {
		return stay(), err
	}
	code := twofa.NormalizeCode(input.TwoFactorCode)

	factor, ok := ResolveFactor(u, input.AuthMethod)
	if !ok {
		slog.Warn("No second factor matches the chosen method", "user_id", u.ID, "auth_method", input.AuthMethod)
		return stay(), idperrors.InvalidCode()
	}

	var result signin.SignInResult
	switch factor {
	case user.FactorAuthenticator:
		result, err = g.signIn.TwoFactorAuthenticatorSignIn(ctx, w, r, code, rememberMe, input.RememberMachine)
	case user.FactorPhone:
		result, err = g.signIn.TwoFactorSignIn(ctx, w, r, tokenprovider.PurposePhone, code, rememberMe, input.RememberMachine)
	default:
		result, err = g.signIn.TwoFactorSignIn(ctx, w, r, tokenprovider.PurposeEmail, code, rememberMe, input.RememberMachine)
	}
	if err != nil {
		if errors.Is(err, signin.ErrNoPendingSignIn) {
			return Outcome{State: Failed}, idperrors.Wrap(err, idperrors.ErrCodePreconditionFailed, msgNoPendingUser)
		}
		g.metrics.TwoFactorSignIn(string(factor), string(Failed))
		return Outcome{State: Failed}, fmt.Errorf("failed to complete two-factor sign-in: %w", err)
	}

	switch {
	case result.Succeeded:
		slog.Info("User logged in with 2fa", "user_id", u.ID, "factor", factor)
		g.metrics.TwoFactorSignIn(string(factor), string(Succeeded))
		return Outcome{State: Succeeded, RedirectURL: LocalReturnURL(returnURL)}, nil
	case result.IsLockedOut:
		slog.Warn("User account locked out", "user_id", u.ID)
		g.metrics.TwoFactorSignIn(string(factor), string(LockedOut))
		return Outcome{State: LockedOut, RedirectURL: LockoutPath}, nil
	default:
		slog.Warn("Invalid code entered", "user_id", u.ID)
		g.metrics.TwoFactorSignIn(string(factor), string(AwaitingCode))
		return stay(), idperrors.InvalidCode()
	}
}

func (g *TwoFactorGate) pendingUser(ctx context.Context, r *http.Request) (*user.User, error) {
	u, err := g.signIn.GetTwoFactorAuthenticationUser(ctx, r)
	if errors.Is(err, signin.ErrNoPendingSignIn) {
		return nil, idperrors.Wrap(err, idperrors.ErrCodePreconditionFailed, msgNoPendingUser)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load two-factor user: %w", err)
	}
	return u, nil
}

func (g *TwoFactorGate) display(u *user.User, method AuthMethod, rememberMe bool, returnURL string) View {
	return View{
		State:           AwaitingFactorChoice,
		IsAuthenticator: u.AuthenticatorApp2FAEnabled,
		IsPhone:         u.Phone2FAEnabled,
		IsEmail:         u.Email2FAEnabled,
		AuthMethod:      method,
		RememberMe:      rememberMe,
		ReturnURL:       returnURL,
	}
}

func (g *TwoFactorGate) sendSms(ctx context.Context, u *user.User, view *View) {
	if _, err := g.sender.Send2FaChallenge(ctx, u, u.PhoneNumber); err != nil {
		slog.Error("Failed to send 2FA SMS", "user_id", u.ID, "err", err)
		view.DeliveryError = idperrors.PublicMessage(err)
		return
	}
	view.CodeSentVia = append(view.CodeSentVia, "sms")
}

func (g *TwoFactorGate) sendEmail(ctx context.Context, u *user.User, view *View) {
	if _, err := g.sender.Send2FaEmailChallenge(ctx, u); err != nil {
		slog.Error("Failed to send 2FA email", "user_id", u.ID, "err", err)
		view.DeliveryError = idperrors.PublicMessage(err)
		return
	}
	view.CodeSentVia = append(view.CodeSentVia, "email")
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return idperrors.FieldInvalid(TwoFactorCodeField, "code required")
	}
	if n := utf8.RuneCountInString(code); n < minCodeLength || n > maxCodeLength {
		return idperrors.FieldInvalid(TwoFactorCodeField,
			fmt.Sprintf("The 2FA code must be at least %d and at max %d characters long.", minCodeLength, maxCodeLength))
	}
	return nil
}

// LocalReturnURL keeps redirects on this site: anything that is not a
// rooted local path becomes "/".
func LocalReturnURL(returnURL string) string {
	if returnURL == "" || returnURL[0] != '/' {
		return "/"
	}
	if strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return "/"
	}
	return returnURL
}
