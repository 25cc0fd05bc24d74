package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// PersistenceConfig selects the user repository backend.
type PersistenceConfig struct {
	Type     string `env:"IDP_PERSISTENCE_TYPE" env-default:"inmem"`
	FilePath string `env:"IDP_PERSISTENCE_FILE" env-default:"data/users.json"`
}

var persistenceTypes = []string{"inmem", "file", "postgres"}

func (p PersistenceConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("IDP_PERSISTENCE_TYPE", p.Type, persistenceTypes),
		func() *ValidationError {
			if p.Type == "file" {
				return RequireNonEmpty("IDP_PERSISTENCE_FILE", p.FilePath)
			}
			return nil
		}(),
	)
}

// DatabaseConfig holds PostgreSQL settings for the "postgres" persistence type.
type DatabaseConfig struct {
	Host     string `env:"IDP_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"IDP_PG_PORT" env-default:"5432"`
	Database string `env:"IDP_PG_DATABASE" env-default:"idp_db"`
	User     string `env:"IDP_PG_USER" env-default:"idp"`
	Password string `env:"IDP_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"IDP_PG_SCHEMA" env-default:"public"`
}

func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

func (d DatabaseConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("IDP_PG_HOST", d.Host),
		RequireNonEmpty("IDP_PG_DATABASE", d.Database),
		RequireNonEmpty("IDP_PG_USER", d.User),
	)
}

// RedisConfig backs the used-code store. An empty Addr keeps codes in memory.
type RedisConfig struct {
	Addr     string `env:"IDP_REDIS_ADDR"`
	Password string `env:"IDP_REDIS_PASSWORD"`
	DB       int    `env:"IDP_REDIS_DB" env-default:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}
