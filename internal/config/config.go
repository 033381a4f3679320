package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Limits LimitsConfig
}

type AppConfig struct {
	Env       string `env:"APP_ENV"`
	Port      int    `env:"APP_PORT"`
	StaticDir string `env:"STATIC_DIR"`
	// TrustedProxies lists proxy IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty trusts no proxy: the client IP is the TCP peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`
}

type RedisConfig struct {
	Host string `env:"REDIS_HOST"`
	Port int    `env:"REDIS_PORT"`
}

type AuthConfig struct {
	// CryptSecret keys the session token cipher. Never log it.
	CryptSecret string `env:"CRYPT_PASS"`
	// LoginPath is where non-AJAX routes redirect rejected requests.
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`
	// LegacyHeaderParse takes the last hex run of the auth header instead of
	// requiring the header to be exactly one token. Migration aid only.
	LegacyHeaderParse bool `env:"AUTH_LEGACY_HEADER_PARSE" envDefault:"false"`
	// APIKeyFallback lets AJAX routes accept a stored API key when no valid token is sent.
	APIKeyFallback bool `env:"AUTH_API_KEY_FALLBACK" envDefault:"false"`
}

type LimitsConfig struct {
	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES" envDefault:"10"`
	LoginFailureWindow time.Duration `env:"LOGIN_FAILURE_WINDOW" envDefault:"15m"`
	AuthRatePerSec     float64       `env:"AUTH_RATE_PER_SEC" envDefault:"1"`
	AuthRateBurst      int           `env:"AUTH_RATE_BURST" envDefault:"5"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	c.App.Env = strings.TrimSpace(c.App.Env)
	c.DB.Host = strings.TrimSpace(c.DB.Host)
	c.DB.User = strings.TrimSpace(c.DB.User)
	c.DB.Name = strings.TrimSpace(c.DB.Name)
	c.DB.SSLMode = strings.TrimSpace(c.DB.SSLMode)
	c.Redis.Host = strings.TrimSpace(c.Redis.Host)
	c.Auth.LoginPath = strings.TrimSpace(c.Auth.LoginPath)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills local-friendly defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	for i, p := range c.App.TrustedProxies {
		p = strings.TrimSpace(p)
		c.App.TrustedProxies[i] = p
		if !isValidProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.CryptSecret == "" {
		errs = append(errs, errors.New("CRYPT_PASS is required"))
	} else if c.IsProduction() && len(c.Auth.CryptSecret) < 32 {
		errs = append(errs, errors.New("CRYPT_PASS must be at least 32 characters in production"))
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/login"
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		errs = append(errs, fmt.Errorf("LOGIN_PATH must be an absolute path, got %q", c.Auth.LoginPath))
	}
	if c.Limits.LoginMaxFailures <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_MAX_FAILURES must be > 0, got %d", c.Limits.LoginMaxFailures))
	}
	if c.Limits.LoginFailureWindow <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_FAILURE_WINDOW must be > 0, got %s", c.Limits.LoginFailureWindow))
	}
	if c.Limits.AuthRatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_PER_SEC must be > 0, got %v", c.Limits.AuthRatePerSec))
	}
	if c.Limits.AuthRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_BURST must be > 0, got %d", c.Limits.AuthRateBurst))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidProxy(v string) bool {
	if strings.Contains(v, "/") {
		_, _, err := net.ParseCIDR(v)
		return err == nil
	}
	return net.ParseIP(v) != nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
