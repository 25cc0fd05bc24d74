package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/loginflow"
	"github.com/tendant/simple-idp/pkg/notification"
	"github.com/tendant/simple-idp/pkg/ratelimit"
	"github.com/tendant/simple-idp/pkg/signin"
	"github.com/tendant/simple-idp/pkg/tokenprovider"
	"github.com/tendant/simple-idp/pkg/twofa"
	"github.com/tendant/simple-idp/pkg/user"
	"golang.org/x/crypto/bcrypt"
)

// browser replays the cookies the server set, like a real user agent.
type browser struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	b.t.Helper()
	payload := ""
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		payload = string(data)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

type testEnv struct {
	users *user.UserManager
	sms   *notification.MockNotifier
	alice *user.User
	b     *browser
}

func setup(t *testing.T, factors ...user.Factor) *testEnv {
	t.Helper()
	return setupWith(t, nil, factors...)
}

func setupWith(t *testing.T, opts []Option, factors ...user.Factor) *testEnv {
	t.Helper()
	ctx := context.Background()
	users := user.NewUserManager(user.NewInMemUserRepository(), user.WithBcryptCost(bcrypt.MinCost))
	codes := tokenprovider.NewProvider()
	sms := &notification.MockNotifier{Ack: "OK"}
	nm, err := notification.NewNotificationManager(
		notification.WithNotifier(notification.SMSSystem, sms),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)

	alice, err := users.CreateUser(ctx, "alice", "alice@example.com", "pa55word")
	require.NoError(t, err)
	alice.PhoneNumber = "+41791234567"
	alice.PhoneNumberConfirmed = true
	for _, f := range factors {
		alice.EnableFactor(f)
	}
	require.True(t, users.Update(ctx, alice).Succeeded)

	signIn := signin.NewSignInManager("test-secret-at-least-sixteen", users, codes)
	gate := loginflow.NewTwoFactorGate(signIn, twofa.NewPhoneVerificationService(users, codes, nm))

	r := chi.NewRouter()
	r.Route("/api/account", func(r chi.Router) {
		NewHandler(signIn, gate, opts...).RegisterRoutes(r)
	})

	return &testEnv{
		users: users,
		sms:   sms,
		alice: alice,
		b:     &browser{t: t, router: r, cookies: make(map[string]*http.Cookie)},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginWithoutTwoFactor(t *testing.T) {
	env := setup(t)

	rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "pa55word", ReturnURL: "/app"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LoginResponse](t, rec)
	assert.True(t, resp.Succeeded)
	assert.Equal(t, "/app", resp.RedirectURL)
	assert.Contains(t, env.b.cookies, signin.SessionCookieName)

	rec = env.b.do(http.MethodPost, "/api/account/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, env.b.cookies, signin.SessionCookieName)
}

func TestLoginRejects(t *testing.T) {
	env := setup(t)

	t.Run("wrong password", func(t *testing.T) {
		rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, msgInvalidLogin, decode[idperrors.ErrorResponse](t, rec).Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[idperrors.ErrorResponse](t, rec)
		assert.Contains(t, resp.Fields, "Input.UserName")
		assert.Contains(t, resp.Fields, "Input.Password")
	})

	t.Run("locked out", func(t *testing.T) {
		for i := 0; i < user.DefaultMaxFailedAttempts; i++ {
			env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "nope"})
		}
		rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "pa55word"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		resp := decode[LoginResponse](t, rec)
		assert.True(t, resp.LockedOut)
		assert.Equal(t, loginflow.LockoutPath, resp.RedirectURL)
	})
}

func TestPhoneTwoFactorLogin(t *testing.T) {
	env := setup(t, user.FactorPhone)

	rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "pa55word", RememberMe: true, ReturnURL: "/app"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	require.True(t, login.RequiresTwoFactor)
	assert.Equal(t, "/account/login/2fa?rememberMe=true&returnUrl=%2Fapp", login.RedirectURL)
	assert.NotContains(t, env.b.cookies, signin.SessionCookieName)

	rec = env.b.do(http.MethodGet, "/api/account/login/2fa?returnUrl=/app", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[loginflow.View](t, rec)
	assert.True(t, view.IsPhone)
	assert.True(t, view.RememberMe, "falls back to the password step choice")
	assert.Equal(t, []string{"sms"}, view.CodeSentVia)

	last, ok := env.sms.Last()
	require.True(t, ok)

	t.Run("invalid code keeps the page", func(t *testing.T) {
		rec := env.b.do(http.MethodPost, "/api/account/login/2fa?returnUrl=/app", loginflow.Input{TwoFactorCode: "0000000"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decode[GateResponse](t, rec)
		assert.Equal(t, loginflow.AwaitingCode, resp.State)
		require.NotNil(t, resp.View)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Invalid code.", resp.Error.Error)
	})

	t.Run("short code is a field error", func(t *testing.T) {
		rec := env.b.do(http.MethodPost, "/api/account/login/2fa", loginflow.Input{TwoFactorCode: "12"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[GateResponse](t, rec)
		require.NotNil(t, resp.Error)
		assert.Contains(t, resp.Error.Fields, loginflow.TwoFactorCodeField)
	})

	rec = env.b.do(http.MethodPost, "/api/account/login/2fa?returnUrl=/app", loginflow.Input{TwoFactorCode: last.Data["Code"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[GateResponse](t, rec)
	assert.Equal(t, loginflow.Succeeded, resp.State)
	assert.Equal(t, "/app", resp.RedirectURL)
	assert.Contains(t, env.b.cookies, signin.SessionCookieName)
	assert.NotContains(t, env.b.cookies, signin.PendingCookieName)
}

func TestTwoFactorWithoutPendingSignIn(t *testing.T) {
	env := setup(t, user.FactorPhone)

	rec := env.b.do(http.MethodGet, "/api/account/login/2fa", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unable to load two-factor authentication user.", decode[idperrors.ErrorResponse](t, rec).Error)

	rec = env.b.do(http.MethodPost, "/api/account/login/2fa", loginflow.Input{TwoFactorCode: "123456"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendSms(t *testing.T) {
	env := setup(t, user.FactorPhone, user.FactorAuthenticator)

	rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "pa55word"})
	require.True(t, decode[LoginResponse](t, rec).RequiresTwoFactor)

	rec = env.b.do(http.MethodGet, "/api/account/login/2fa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[loginflow.View](t, rec).CodeSentVia, "authenticator users are not texted")
	assert.Empty(t, env.sms.Sent())

	rec = env.b.do(http.MethodPost, "/api/account/login/2fa/send-sms", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[loginflow.View](t, rec)
	assert.Equal(t, loginflow.MethodPhone, view.AuthMethod)
	assert.Len(t, env.sms.Sent(), 1)
}

func TestSendThrottle(t *testing.T) {
	limiter := ratelimit.NewLimiter(2, time.Hour)
	env := setupWith(t, []Option{WithSendThrottle(ratelimit.Middleware(limiter, ratelimit.ByIP))}, user.FactorPhone)

	rec := env.b.do(http.MethodPost, "/api/account/login", LoginRequest{UserName: "alice", Password: "pa55word"})
	require.True(t, decode[LoginResponse](t, rec).RequiresTwoFactor)

	rec = env.b.do(http.MethodGet, "/api/account/login/2fa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.b.do(http.MethodPost, "/api/account/login/2fa/send-sms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.b.do(http.MethodPost, "/api/account/login/2fa/send-sms", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Len(t, env.sms.Sent(), 2)

	rec = env.b.do(http.MethodPost, "/api/account/login/2fa/use-authenticator", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "choosing the authenticator sends nothing")
}
