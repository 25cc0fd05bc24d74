// Package config holds the environment-driven configuration sections of
// simple-idp and the helpers to validate them.
//
// Sections are plain structs with cleanenv tags, read in cmd/idp:
//
//	type Config struct {
//		Sms     config.SmsConfig
//		Session config.SessionConfig
//	}
//
//	var cfg Config
//	if err := cleanenv.ReadEnv(&cfg); err != nil { ... }
//	if err := config.Validate(cfg.Sms.Validate, cfg.Session.Validate); err != nil { ... }
//
// Validation is intentionally shallow: the SMS gateway settings are only
// checked for presence, never dialled.
//
// The GetEnv* helpers cover values read outside of cleanenv, such as flag
// defaults in cmd/inituser.
package config
