// Package main runs the identity provider: password sign-in, the second
// factor gate and the account pages for phone, email and authenticator 2FA.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-idp/pkg/client"
	"github.com/tendant/simple-idp/pkg/config"
	"github.com/tendant/simple-idp/pkg/loginflow"
	loginapi "github.com/tendant/simple-idp/pkg/loginflow/api"
	"github.com/tendant/simple-idp/pkg/metrics"
	"github.com/tendant/simple-idp/pkg/notification"
	"github.com/tendant/simple-idp/pkg/ratelimit"
	"github.com/tendant/simple-idp/pkg/securityheaders"
	"github.com/tendant/simple-idp/pkg/signin"
	"github.com/tendant/simple-idp/pkg/smsgateway"
	"github.com/tendant/simple-idp/pkg/tokenprovider"
	"github.com/tendant/simple-idp/pkg/twofa"
	twofaapi "github.com/tendant/simple-idp/pkg/twofa/api"
	"github.com/tendant/simple-idp/pkg/user"
)

type Config struct {
	AppConfig       app.AppConfig
	Log             config.LogConfig
	Issuer          config.IssuerConfig
	Persistence     config.PersistenceConfig
	Database        config.DatabaseConfig
	Redis           config.RedisConfig
	Sms             config.SmsConfig
	Email           config.EmailConfig
	Session         config.SessionConfig
	Lockout         config.LockoutConfig
	Codes           config.CodeConfig
	Cors            config.CorsConfig
	SecurityHeaders config.SecurityHeadersConfig
	RateLimit       config.RateLimitConfig
}

func (c Config) Validate() error {
	validators := []config.Validator{
		c.Log.Validate,
		c.Issuer.Validate,
		c.Persistence.Validate,
		c.Sms.Validate,
		c.Email.Validate,
		c.Session.Validate,
		c.Lockout.Validate,
		c.Codes.Validate,
		c.SecurityHeaders.Validate,
		c.RateLimit.Validate,
	}
	if c.Persistence.Type == "postgres" {
		validators = append(validators, c.Database.Validate)
	}
	return config.Validate(validators...)
}

// loadEnvFile loads .env from the executable's directory or the working
// directory. Variables already set in the environment win.
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}
	envFile := filepath.Join(filepath.Dir(execPath), ".env")

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		AddSource:  true,
		TimeFormat: time.Kitchen,
	}))
}

func main() {
	loadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repoConfig := user.RepositoryConfig{FilePath: cfg.Persistence.FilePath}
	if cfg.Persistence.Type == "postgres" {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User, "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		repoConfig.DB = pool
	}
	userRepo, err := user.NewUserRepository(cfg.Persistence.Type, repoConfig)
	if err != nil {
		slog.Error("Failed creating user repository", "type", cfg.Persistence.Type, "err", err)
		os.Exit(1)
	}
	users := user.NewUserManager(userRepo, user.WithLockout(cfg.Lockout.MaxFailedAttempts, cfg.Lockout.Duration))

	var usedCodes tokenprovider.UsedCodeStore = tokenprovider.NewMemoryUsedCodeStore()
	if cfg.Redis.Enabled() {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
		usedCodes = tokenprovider.NewRedisUsedCodeStore(rdb, "idp:used-code:")
		slog.Info("Used codes stored in redis", "addr", cfg.Redis.Addr)
	}
	codes := tokenprovider.NewProvider(
		tokenprovider.WithUsedCodeStore(usedCodes),
		tokenprovider.WithPeriod(cfg.Codes.PeriodSeconds),
		tokenprovider.WithSkew(cfg.Codes.Skew),
	)

	gateway, err := smsgateway.NewClient(cfg.Sms.ToGatewayConfig(), nil)
	if err != nil {
		slog.Error("Failed creating sms gateway client", "err", err)
		os.Exit(1)
	}
	noticeOpts := []notification.Option{
		notification.WithSMSGateway(gateway),
		notification.WithDefaultTemplates(),
	}
	if cfg.Email.Enabled() {
		noticeOpts = append(noticeOpts, notification.WithSMTP(cfg.Email.ToSMTPConfig()))
	}
	notificationManager, err := notification.NewNotificationManager(noticeOpts...)
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	idpMetrics := metrics.New(registry)

	signInManager := signin.NewSignInManager(cfg.Session.JwtSecret, users, codes,
		signin.WithIssuer(cfg.Issuer.Name),
		signin.WithExpiry(cfg.Session.SessionExpiry, cfg.Session.PendingExpiry, cfg.Session.RememberExpiry),
		signin.WithCookieSetter(signin.NewCookieSetter(cfg.Session.CookieHttpOnly, cfg.Session.CookieSecure)),
	)
	twofaService := twofa.NewPhoneVerificationService(users, codes, notificationManager,
		twofa.WithMetrics(idpMetrics),
		twofa.WithClientRememberer(signInManager),
		twofa.WithIssuer(cfg.Issuer.Name),
	)
	gate := loginflow.NewTwoFactorGate(signInManager, twofaService, loginflow.WithMetrics(idpMetrics))

	policy, err := securityheaders.NewPolicy(cfg.SecurityHeaders.Dev, cfg.Issuer.BaseURL, cfg.SecurityHeaders.ClientUIURL)
	if err != nil {
		slog.Error("Failed building security header policy", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	server.R.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	tokenAuth := jwtauth.New("HS256", []byte(cfg.Session.JwtSecret), nil)

	loginLimiter := ratelimit.NewLimiter(cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginWindow)
	sendLimiter := ratelimit.NewLimiter(cfg.RateLimit.SendCodeBurst, cfg.RateLimit.SendCodeWindow)
	go loginLimiter.Run(ctx, 10*time.Minute)
	go sendLimiter.Run(ctx, 10*time.Minute)

	loginHandler := loginapi.NewHandler(signInManager, gate,
		loginapi.WithLoginThrottle(ratelimit.Middleware(loginLimiter, ratelimit.ByIP)),
		loginapi.WithSendThrottle(ratelimit.Middleware(sendLimiter, ratelimit.ByIP)),
	)
	accountHandler := twofaapi.NewHandler(users, twofaService, signInManager,
		twofaapi.WithSendThrottle(ratelimit.Middleware(sendLimiter, ratelimit.ByUser)),
	)

	server.R.Route("/api/account", func(r chi.Router) {
		r.Use(securityheaders.Middleware(policy))
		r.Use(securityheaders.CORS(cfg.Cors.AllowedOrigins))

		loginHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(client.RequireAuth(tokenAuth))
			accountHandler.RegisterRoutes(r)
		})
	})

	slog.Info("Identity provider ready",
		"issuer", cfg.Issuer.Name,
		"persistence", cfg.Persistence.Type,
		"email_2fa", cfg.Email.Enabled(),
		"redis", cfg.Redis.Enabled(),
	)
	server.Run()
}
