package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"member-portal/internal/account"
	"member-portal/internal/apikey"
	"member-portal/internal/audit"
	"member-portal/internal/auth"
	"member-portal/internal/config"
	"member-portal/internal/httpapi"
	"member-portal/internal/routes"
	"member-portal/internal/security"
	"member-portal/pkg/logger"
	"member-portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// A missing secret must stop the process before any route is served.
	cipher, err := security.NewCipher(cfg.Auth.CryptSecret)
	if err != nil {
		log.Error("cipher init failed", "err", err)
		os.Exit(1)
	}
	codec, err := auth.NewCodec(cipher)
	if err != nil {
		log.Error("codec init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	throttle, err := account.NewRedisThrottle(rdb, cfg.Limits.LoginMaxFailures, cfg.Limits.LoginFailureWindow)
	if err != nil {
		log.Error("login throttle init failed", "err", err)
		os.Exit(1)
	}

	guard, err := auth.NewGuard(auth.GuardConfig{
		Codec:             codec,
		LoginPath:         cfg.Auth.LoginPath,
		LegacyHeaderParse: cfg.Auth.LegacyHeaderParse,
		APIKeyFallback:    cfg.Auth.APIKeyFallback,
		APIKeys:           apikey.NewPostgresStore(db),
	})
	if err != nil {
		log.Error("guard init failed", "err", err)
		os.Exit(1)
	}
	if cfg.Auth.LegacyHeaderParse {
		log.Warn("legacy auth header parsing enabled")
	}

	r, err := newEngine(log, cfg.App.TrustedProxies)
	if err != nil {
		log.Error("router init failed", "err", err)
		os.Exit(1)
	}

	mgr, err := routes.NewManager(r, guard)
	if err != nil {
		log.Error("route manager init failed", "err", err)
		os.Exit(1)
	}

	deps := routeDeps{
		health: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		},
		handlers: httpapi.Handlers{
			Accounts: account.NewService(account.NewPostgresRepository(db), throttle),
			Codec:    codec,
			Audit:    audit.NewService(audit.NewPostgresRepo(db)),
		},
		limiter:   httpapi.NewClientLimiter(cfg.Limits.AuthRatePerSec, cfg.Limits.AuthRateBurst, 10*time.Minute),
		staticDir: cfg.App.StaticDir,
	}
	if err := registerRoutes(r, mgr, deps); err != nil {
		log.Error("route registration failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
