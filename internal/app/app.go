package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/actor"
	"github.com/ayo6706/twinvest-bridge/internal/api"
	"github.com/ayo6706/twinvest-bridge/internal/api/middleware"
	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/observability"
	"github.com/ayo6706/twinvest-bridge/internal/session"
	"github.com/ayo6706/twinvest-bridge/internal/twinvest"
	"github.com/ayo6706/twinvest-bridge/internal/worker"
)

const redisSessionKey = "twinvest:auth:session"

// Run bootstraps the gateway and session sweeper, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store       auth.KeyStore
		redisClient *redis.Client
	)
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		store = auth.NewRedisKeyStore(redisClient, redisSessionKey)
	default:
		store = auth.NewFileKeyStore(cfg.SessionFile)
	}

	authClient, err := auth.NewAuthClient(ctx, auth.AuthClientConfig{
		Store:      store,
		Authorizer: auth.NewLoopbackAuthorizer(cfg.CallbackAddr, nil, cfg.LoginTimeout, logger),
	})
	if err != nil {
		return fmt.Errorf("init auth client: %w", err)
	}

	// Transport is read from the environment on every login.
	transport := config.TransportFromEnv
	bridge := auth.NewBridge(
		auth.NewFederatedProvider(authClient, actor.NewFactory(logger, nil), transport, cfg.IdentityProvider, twinvest.Interface),
		auth.NewExtensionProvider(auth.CompanionDetector(cfg.WalletURL, nil), transport, twinvest.Interface),
	)

	registry := session.NewRegistry(cfg.SessionTTL)
	sweeper := worker.NewSessionSweeper(registry).WithInterval(cfg.SweepInterval)
	stopSweeper := sweeper.Run(ctx)

	deps := api.Deps{
		Bridge:    bridge,
		Registry:  registry,
		Interface: twinvest.Interface,
		Transport: transport,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	router := api.NewRouter(cfg, logger, deps)

	// Logins wait on the browser, so writes get the login timeout.
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LoginTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("ic_host", cfg.Transport.Host),
			zap.String("session_store", cfg.SessionStore),
			zap.Bool("wallet_configured", cfg.WalletURL != ""),
		)
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping session sweeper")
	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
