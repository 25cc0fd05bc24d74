// Package main creates an identity provider user, optionally with a
// confirmed phone number so phone 2FA can be enabled right away.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/lmittmann/tint"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-idp/pkg/config"
	"github.com/tendant/simple-idp/pkg/user"
)

type Config struct {
	Persistence config.PersistenceConfig
	Database    config.DatabaseConfig
}

func main() {
	// flags default to IDP_INIT_* so the CLI can run from a container env
	username := flag.String("username", config.GetEnvOrDefault("IDP_INIT_USERNAME", ""), "Username for the new user (required)")
	password := flag.String("password", config.GetEnvOrDefault("IDP_INIT_PASSWORD", ""), "Password for the new user (required)")
	email := flag.String("email", config.GetEnvOrDefault("IDP_INIT_EMAIL", ""), "Email for the new user (required)")
	phone := flag.String("phone", config.GetEnvOrDefault("IDP_INIT_PHONE", ""), "Confirmed phone number in E.164 form")
	phone2fa := flag.Bool("phone2fa", config.GetEnvBool("IDP_INIT_PHONE_2FA", false), "Enable phone 2FA, requires -phone")
	flag.Parse()

	if *username == "" || *password == "" || *email == "" {
		fmt.Println("Error: username, password and email are required")
		flag.Usage()
		os.Exit(1)
	}
	if *phone2fa && *phone == "" {
		fmt.Println("Error: -phone2fa needs -phone")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{AddSource: true})))

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg.Persistence.Validate); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repoConfig := user.RepositoryConfig{FilePath: cfg.Persistence.FilePath}
	if cfg.Persistence.Type == "postgres" {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(1)
		}
		defer pool.Close()
		repoConfig.DB = pool
	}
	repo, err := user.NewUserRepository(cfg.Persistence.Type, repoConfig)
	if err != nil {
		slog.Error("Failed creating user repository", "err", err)
		os.Exit(1)
	}
	users := user.NewUserManager(repo)

	u, err := users.CreateUser(ctx, *username, *email, *password)
	if err != nil {
		slog.Error("Failed to create user", "username", *username, "error", err)
		os.Exit(1)
	}

	if *phone != "" {
		users.SetPhoneNumber(u, *phone)
		u.PhoneNumberConfirmed = true
		if *phone2fa {
			u.EnableFactor(user.FactorPhone)
		}
		if result := users.Update(ctx, u); !result.Succeeded {
			slog.Error("Failed to store phone number", "errors", result.Errors)
			os.Exit(1)
		}
	}

	slog.Info("User created successfully", "username", u.UserName, "email", u.Email, "user_id", u.ID, "phone_2fa", u.Phone2FAEnabled)
}
