// Package config loads runtime configuration from the environment.
//
// Values come from process environment variables. An optional .env file in the
// working directory is loaded first (via godotenv) so local development does not
// need exported shell variables; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Line-count backends selectable with LINECOUNT_BACKEND.
const (
	LineCountLocal  = "local"
	LineCountDocker = "docker"
)

// DefaultRedirectURI is the callback the provider sends the browser to. It
// belongs to the client, not this server: the terminal client listens on it
// during `dashboard login`.
const DefaultRedirectURI = "http://localhost:5173/auth/callback/github"

// Config holds everything cmd/server needs to build the server.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	// Session token signing. SealKey is optional; when set, the upstream
	// access token embedded in the session token is encrypted.
	JWTSecret string
	SealKey   string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURI  string
	// GitHubAccessToken is a server-wide fallback token for stats calls made
	// without a caller token.
	GitHubAccessToken string
	// GitHubAPIURL overrides the REST base URL (GitHub Enterprise, tests).
	GitHubAPIURL string
	// UpstreamRateLimit is the sustained requests/second allowed against the
	// provider. Zero disables limiting.
	UpstreamRateLimit float64

	CORSOrigins []string

	// RedisAddr switches the OAuth state store to Redis when set.
	RedisAddr string

	LineCountBackend     string
	LineCountConcurrency int
	LineCountTimeout     time.Duration
}

// Load reads configuration from the environment. envFiles are optional dotenv
// files; missing files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("config: loading %s: %w", f, err)
			}
		}
	}

	port, err := getInt("PORT", 5000)
	if err != nil {
		return Config{}, err
	}
	concurrency, err := getInt("LINECOUNT_CONCURRENCY", 2)
	if err != nil {
		return Config{}, err
	}
	timeout, err := getDuration("LINECOUNT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}
	rateLimit, err := getFloat("UPSTREAM_RATE_LIMIT", 1.2)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     port,
		DBPath:   getEnv("DB_PATH", "data/dashboard.db"),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),

		JWTSecret: os.Getenv("JWT_SECRET"),
		SealKey:   os.Getenv("SESSION_SEAL_KEY"),

		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURI:  getEnv("GITHUB_REDIRECT_URI", DefaultRedirectURI),
		GitHubAccessToken:  os.Getenv("GITHUB_ACCESS_TOKEN"),
		GitHubAPIURL:       os.Getenv("GITHUB_API_URL"),
		UpstreamRateLimit:  rateLimit,

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		LineCountBackend:     strings.ToLower(getEnv("LINECOUNT_BACKEND", LineCountLocal)),
		LineCountConcurrency: concurrency,
		LineCountTimeout:     timeout,
	}

	return cfg, cfg.Validate()
}

// Validate reports the first missing or malformed required setting.
func (c Config) Validate() error {
	switch {
	case len(c.JWTSecret) < 16:
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	case c.GitHubClientID == "" || c.GitHubClientSecret == "":
		return errors.New("config: GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required")
	case c.LineCountBackend != LineCountLocal && c.LineCountBackend != LineCountDocker:
		return fmt.Errorf("config: LINECOUNT_BACKEND must be %q or %q, got %q",
			LineCountLocal, LineCountDocker, c.LineCountBackend)
	case c.LineCountConcurrency < 1:
		return errors.New("config: LINECOUNT_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
