package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort           string
	Transport          Transport
	IdentityProvider   string
	WalletURL          string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	SessionTTL         time.Duration
	SessionStore       string
	SessionFile        string
	CallbackAddr       string
	LoginTimeout       time.Duration
	SweepInterval      time.Duration
	PublicRateLimitRPS int
	AuthRateLimitRPS   int
	LogLevel           string
}

// Load reads environment variables using viper and returns a typed config.
// The canister id is not checked here; ResolveTransport reports it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "TWINVEST_PORT")
	bindEnv(v, "canister_id", CanisterIDVar, "VITE_"+CanisterIDVar)
	bindEnv(v, "ic_host", HostVar, "VITE_"+HostVar)
	bindEnv(v, "ii_url", IdentityVar, "VITE_"+IdentityVar)
	bindEnv(v, "wallet_url", "WALLET_URL", "TWINVEST_WALLET_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "TWINVEST_REDIS_URL")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "TWINVEST_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "TWINVEST_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "TWINVEST_JWT_AUDIENCE")
	bindEnv(v, "session_ttl", "SESSION_TTL", "TWINVEST_SESSION_TTL")
	bindEnv(v, "session_store", "SESSION_STORE", "TWINVEST_SESSION_STORE")
	bindEnv(v, "session_file", "SESSION_FILE", "TWINVEST_SESSION_FILE")
	bindEnv(v, "callback_addr", "LOGIN_CALLBACK_ADDR", "TWINVEST_LOGIN_CALLBACK_ADDR")
	bindEnv(v, "login_timeout", "LOGIN_TIMEOUT", "TWINVEST_LOGIN_TIMEOUT")
	bindEnv(v, "sweep_interval", "SWEEP_INTERVAL", "TWINVEST_SWEEP_INTERVAL")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "TWINVEST_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "auth_rate_limit_rps", "AUTH_RATE_LIMIT_RPS", "TWINVEST_AUTH_RATE_LIMIT_RPS")
	bindEnv(v, "log_level", "LOG_LEVEL", "TWINVEST_LOG_LEVEL")

	v.SetDefault("port", "8080")
	v.SetDefault("ic_host", DefaultHost)
	v.SetDefault("ii_url", DefaultIdentityProvider)
	v.SetDefault("wallet_url", "")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "twinvest-bridge")
	v.SetDefault("jwt_audience", "twinvest-gateway")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("session_store", SessionStoreFile)
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("callback_addr", "127.0.0.1:0")
	v.SetDefault("login_timeout", "5m")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("public_rate_limit_rps", 10)
	v.SetDefault("auth_rate_limit_rps", 100)
	v.SetDefault("log_level", "info")

	sessionTTL, err := time.ParseDuration(v.GetString("session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	loginTimeout, err := time.ParseDuration(v.GetString("login_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_TIMEOUT: %w", err)
	}
	sweepInterval, err := time.ParseDuration(v.GetString("sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	cfg := &Config{
		HTTPPort: v.GetString("port"),
		Transport: Transport{
			Host:       v.GetString("ic_host"),
			CanisterID: v.GetString("canister_id"),
		},
		IdentityProvider:   v.GetString("ii_url"),
		WalletURL:          v.GetString("wallet_url"),
		RedisURL:           v.GetString("redis_url"),
		JWTSecret:          v.GetString("jwt_secret"),
		JWTIssuer:          v.GetString("jwt_issuer"),
		JWTAudience:        v.GetString("jwt_audience"),
		SessionTTL:         sessionTTL,
		SessionStore:       strings.ToLower(v.GetString("session_store")),
		SessionFile:        v.GetString("session_file"),
		CallbackAddr:       v.GetString("callback_addr"),
		LoginTimeout:       loginTimeout,
		SweepInterval:      sweepInterval,
		PublicRateLimitRPS: max(v.GetInt("public_rate_limit_rps"), 1),
		AuthRateLimitRPS:   max(v.GetInt("auth_rate_limit_rps"), 1),
		LogLevel:           v.GetString("log_level"),
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(cfg.JWTIssuer) == "" {
		return nil, fmt.Errorf("JWT_ISSUER is required")
	}
	if strings.TrimSpace(cfg.JWTAudience) == "" {
		return nil, fmt.Errorf("JWT_AUDIENCE is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	switch cfg.SessionStore {
	case SessionStoreFile:
		if strings.TrimSpace(cfg.SessionFile) == "" {
			return nil, fmt.Errorf("SESSION_FILE is required when SESSION_STORE is file")
		}
	case SessionStoreRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, fmt.Errorf("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q", SessionStoreFile, SessionStoreRedis)
	}

	return cfg, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".twinvest", "session.yaml")
	}
	return filepath.Join(home, ".twinvest", "session.yaml")
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
