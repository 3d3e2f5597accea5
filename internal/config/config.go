// internal/config/config.go
//
// Typed server configuration.
// Values come from the process environment after an optional `.env` file has
// been loaded; every field has a development default.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"5175"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/vault.db"`

	ClientOrigin string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	TokenSecret  string        `env:"TOKEN_SECRET" envDefault:"dev_secret_change_me"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"vault_token"`

	UnlockDelay   time.Duration `env:"UNLOCK_DELAY" envDefault:"5s"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	AutoCheck     bool          `env:"AUTO_CHECK" envDefault:"false"`

	AllowSeededGames bool   `env:"ALLOW_SEEDED_GAMES" envDefault:"false"`
	SeedSalt         string `env:"SEED_SALT" envDefault:"local_dev_salt"`
}

// Production reports whether cookies must be Secure/SameSite=None.
func (c Config) Production() bool { return c.AppEnv == "production" }

// Load reads dotenvFiles (missing files are ignored) and parses the environment.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.UnlockDelay <= 0 {
		return errors.New("UNLOCK_DELAY must be positive")
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return errors.New("SESSION_TTL and SWEEP_INTERVAL must be positive")
	}
	if c.Production() && c.TokenSecret == "dev_secret_change_me" {
		return errors.New("TOKEN_SECRET must be set in production")
	}
	return nil
}
