package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idp/pkg/tokenprovider"
	"github.com/tendant/simple-idp/pkg/user"
)

var ErrNoPendingSignIn = errors.New("no pending two-factor sign-in")

// UserStore is the part of user.UserManager sign-in needs.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByName(ctx context.Context, userName string) (*user.User, error)
	CheckPassword(u *user.User, password string) bool
	IsLockedOut(u *user.User) bool
	AccessFailed(ctx context.Context, u *user.User) (bool, error)
	ResetAccessFailedCount(ctx context.Context, u *user.User) error
}

type CodeVerifier interface {
	Verify(ctx context.Context, purpose tokenprovider.Purpose, u *user.User, code string) (bool, error)
	VerifyAuthenticatorCode(ctx context.Context, u *user.User, code string) (bool, error)
}

type SignInResult struct {
	Succeeded         bool
	RequiresTwoFactor bool
	IsLockedOut       bool
}

var (
	resultSuccess   = SignInResult{Succeeded: true}
	resultFailed    = SignInResult{}
	resultLockedOut = SignInResult{IsLockedOut: true}
	resultTwoFactor = SignInResult{RequiresTwoFactor: true}
)

const (
	DefaultSessionExpiry  = 8 * time.Hour
	DefaultPendingExpiry  = 5 * time.Minute
	DefaultRememberExpiry = 30 * 24 * time.Hour
)

// SignInManager runs the password step and the second-factor step and owns
// the session, pending-2FA and remember-client cookies.
type SignInManager struct {
	users          UserStore
	codes          CodeVerifier
	tokens         *tokenIssuer
	cookies        CookieSetter
	sessionExpiry  time.Duration
	pendingExpiry  time.Duration
	rememberExpiry time.Duration
}

type Option func(*SignInManager)

func WithCookieSetter(cookies CookieSetter) Option {
	return func(m *SignInManager) {
		m.cookies = cookies
	}
}

func WithExpiry(session, pending, remember time.Duration) Option {
	return func(m *SignInManager) {
		m.sessionExpiry = session
		m.pendingExpiry = pending
		m.rememberExpiry = remember
	}
}

func WithIssuer(issuer string) Option {
	return func(m *SignInManager) {
		m.tokens.issuer = issuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *SignInManager) {
		m.tokens.now = now
	}
}

func NewSignInManager(secret string, users UserStore, codes CodeVerifier, opts ...Option) *SignInManager {
	m := &SignInManager{
		users: users,
		codes: codes,
		tokens: &tokenIssuer{
			secret: []byte(secret),
			issuer: "simple-idp",
			now:    func() time.Time { return time.Now().UTC() },
		},
		cookies:        NewCookieSetter(true, false),
		sessionExpiry:  DefaultSessionExpiry,
		pendingExpiry:  DefaultPendingExpiry,
		rememberExpiry: DefaultRememberExpiry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PasswordSignIn checks the first factor. Users with two-factor enabled get
// a pending-2FA cookie and RequiresTwoFactor, unless this browser was
// remembered.
func (m *SignInManager) PasswordSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, userName, password string, rememberMe bool) (SignInResult, error) {
	u, err := m.users.FindByName(ctx, userName)
	if errors.Is(err, user.ErrUserNotFound) {
		slog.Info("Sign-in for unknown user", "user_name", userName)
		return resultFailed, nil
	}
	if err != nil {
		return resultFailed, err
	}
	if m.users.IsLockedOut(u) {
		return resultLockedOut, nil
	}

	if !m.users.CheckPassword(u, password) {
		return m.accessFailed(ctx, u)
	}
	if err := m.users.ResetAccessFailedCount(ctx, u); err != nil {
		return resultFailed, err
	}

	if u.TwoFactorEnabled && !m.IsTwoFactorClientRemembered(r, u) {
		token, expiresAt, err := m.tokens.issue(tokenTypePending, u.ID.String(), m.pendingExpiry, Claims{RememberMe: rememberMe})
		if err != nil {
			return resultFailed, err
		}
		m.cookies.SetCookie(w, PendingCookieName, token, expiresAt)
		slog.Info("Password accepted, second factor required", "user_id", u.ID)
		return resultTwoFactor, nil
	}

	if err := m.SignIn(w, u, rememberMe, "pwd"); err != nil {
		return resultFailed, err
	}
	return resultSuccess, nil
}

// GetTwoFactorAuthenticationUser resolves the user who passed the password
// step in this browser.
func (m *SignInManager) GetTwoFactorAuthenticationUser(ctx context.Context, r *http.Request) (*user.User, error) {
	claims, err := m.pendingClaims(r)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrNoPendingSignIn
	}
	u, err := m.users.FindByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrNoPendingSignIn
	}
	return u, err
}

// PendingRememberMe returns the remember-me choice made at the password step.
func (m *SignInManager) PendingRememberMe(r *http.Request) bool {
	claims, err := m.pendingClaims(r)
	return err == nil && claims.RememberMe
}

func (m *SignInManager) pendingClaims(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(PendingCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoPendingSignIn
	}
	claims, err := m.tokens.parse(tokenTypePending, cookie.Value)
	if err != nil {
		slog.Info("Rejected pending sign-in cookie", "err", err)
		return nil, ErrNoPendingSignIn
	}
	return claims, nil
}

// TwoFactorAuthenticatorSignIn completes sign-in with an authenticator app code.
func (m *SignInManager) TwoFactorAuthenticatorSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, code string, isPersistent, rememberClient bool) (SignInResult, error) {
	return m.twoFactorSignIn(ctx, w, r, "otp", isPersistent, rememberClient, func(u *user.User) (bool, error) {
		return m.codes.VerifyAuthenticatorCode(ctx, u, code)
	})
}

// TwoFactorSignIn completes sign-in with a code delivered over provider
// (tokenprovider.PurposePhone or PurposeEmail).
func (m *SignInManager) TwoFactorSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, provider tokenprovider.Purpose, code string, isPersistent, rememberClient bool) (SignInResult, error) {
	method := "sms"
	if provider == tokenprovider.PurposeEmail {
		method = "email"
	}
	return m.twoFactorSignIn(ctx, w, r, method, isPersistent, rememberClient, func(u *user.User) (bool, error) {
		return m.codes.Verify(ctx, provider, u, code)
	})
}

func (m *SignInManager) twoFactorSignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, method string, isPersistent, rememberClient bool, verify func(*user.User) (bool, error)) (SignInResult, error) {
	u, err := m.GetTwoFactorAuthenticationUser(ctx, r)
	if err != nil {
		return resultFailed, err
	}
	if m.users.IsLockedOut(u) {
		return resultLockedOut, nil
	}

	ok, err := verify(u)
	if err != nil {
		return resultFailed, err
	}
	if !ok {
		return m.accessFailed(ctx, u)
	}

	if err := m.users.ResetAccessFailedCount(ctx, u); err != nil {
		return resultFailed, err
	}
	m.cookies.ClearCookie(w, PendingCookieName)
	if rememberClient {
		if err := m.rememberClient(w, u); err != nil {
			return resultFailed, err
		}
	}
	if err := m.SignIn(w, u, isPersistent, "pwd", method, "mfa"); err != nil {
		return resultFailed, err
	}
	slog.Info("Two-factor sign-in succeeded", "user_id", u.ID, "method", method)
	return resultSuccess, nil
}

func (m *SignInManager) accessFailed(ctx context.Context, u *user.User) (SignInResult, error) {
	lockedOut, err := m.users.AccessFailed(ctx, u)
	if err != nil {
		return resultFailed, err
	}
	if lockedOut {
		return resultLockedOut, nil
	}
	return resultFailed, nil
}

// SignIn issues the application session cookie. A non-persistent session
// lives as long as the browser session.
func (m *SignInManager) SignIn(w http.ResponseWriter, u *user.User, isPersistent bool, amr ...string) error {
	token, expiresAt, err := m.tokens.issue(TokenTypeSession, u.ID.String(), m.sessionExpiry, Claims{UserName: u.UserName, AMR: amr})
	if err != nil {
		return err
	}
	if !isPersistent {
		expiresAt = time.Time{}
	}
	m.cookies.SetCookie(w, SessionCookieName, token, expiresAt)
	return nil
}

func (m *SignInManager) rememberClient(w http.ResponseWriter, u *user.User) error {
	token, expiresAt, err := m.tokens.issue(tokenTypeRemember, u.ID.String(), m.rememberExpiry, Claims{StampHash: stampHash(u.SecurityStamp)})
	if err != nil {
		return fmt.Errorf("failed to remember client: %w", err)
	}
	m.cookies.SetCookie(w, RememberCookieName, token, expiresAt)
	return nil
}

// IsTwoFactorClientRemembered reports whether this browser skips the second
// factor for u. Rotating the security stamp forgets every browser.
func (m *SignInManager) IsTwoFactorClientRemembered(r *http.Request, u *user.User) bool {
	cookie, err := r.Cookie(RememberCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	claims, err := m.tokens.parse(tokenTypeRemember, cookie.Value)
	if err != nil {
		return false
	}
	return claims.Subject == u.ID.String() && claims.StampHash == stampHash(u.SecurityStamp)
}

func (m *SignInManager) ForgetTwoFactorClient(w http.ResponseWriter) {
	m.cookies.ClearCookie(w, RememberCookieName)
}

func (m *SignInManager) SignOut(w http.ResponseWriter) {
	m.cookies.ClearCookie(w, SessionCookieName)
	m.cookies.ClearCookie(w, PendingCookieName)
}
