package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret          string
	FederatedJWTSecret string
	AdminEmails        []string

	LogLevel           slog.Level
	OutboxPollInterval time.Duration
}

// Load reads the service configuration from the environment, after an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		FederatedJWTSecret:   getenv("FEDERATED_JWT_SECRET", ""),
		CORSAllowedOrigins:   splitList(getenv("CORS_ALLOWED_ORIGINS", "")),
		AdminEmails:          splitList(strings.ToLower(getenv("ADMIN_EMAILS", ""))),
		LogLevel:             parseLevel(getenv("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 800*time.Millisecond); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type ClientConfig struct {
	APIURL        string
	CachePath     string
	RedirectDelay time.Duration
	HTTPTimeout   time.Duration
	LogLevel      slog.Level
}

// LoadClient reads the CLI configuration. Nothing is required; the cache
// lives under the user's home directory unless GIGBOARD_CACHE_PATH is set.
func LoadClient() (ClientConfig, error) {
	_ = godotenv.Load()

	cfg := ClientConfig{
		APIURL:    strings.TrimRight(getenv("GIGBOARD_API_URL", "http://localhost:8080"), "/"),
		CachePath: getenv("GIGBOARD_CACHE_PATH", ""),
		LogLevel:  parseLevel(getenv("LOG_LEVEL", "warn")),
	}
	if cfg.CachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.CachePath = filepath.Join(home, ".gigboard", "cache.db")
	}

	var err error
	if cfg.RedirectDelay, err = getDuration("GIGBOARD_REDIRECT_DELAY", 2*time.Second); err != nil {
		return ClientConfig{}, err
	}
	if cfg.HTTPTimeout, err = getDuration("GIGBOARD_HTTP_TIMEOUT", 15*time.Second); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("missing env: %s", key)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a duration like 2s", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
