// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/roadwatch/internal/admin"
	"github.com/carterperez-dev/roadwatch/internal/auth"
	"github.com/carterperez-dev/roadwatch/internal/bootstrap"
	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/health"
	"github.com/carterperez-dev/roadwatch/internal/identity"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
	"github.com/carterperez-dev/roadwatch/internal/reconcile"
	"github.com/carterperez-dev/roadwatch/internal/server"
	"github.com/carterperez-dev/roadwatch/internal/signalement"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := bootstrap.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		infra.Close(context.Background())
		return err
	}
	logger.Info("token issuer initialized",
		"algorithm", "HS256",
		"expiry", cfg.JWT.AccessTokenExpire,
	)

	userRepo := user.NewRepository(infra.DB.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	signalementRepo := signalement.NewRepository(infra.DB.DB)
	engine := infra.Engine(signalementRepo, userRepo)

	signalementSvc := signalement.NewService(signalement.ServiceConfig{
		Repo:      signalementRepo,
		IDs:       infra.IDs,
		Owners:    userSvc,
		Pusher:    engine,
		Publisher: infra.Publisher,
		Logger:    logger,
	})
	signalementHandler := signalement.NewHandler(signalementSvc)

	var syncer *identity.Syncer
	var identitySyncer auth.IdentitySyncer
	if cfg.Identity.Enabled {
		syncer = identity.NewSyncer(userRepo, identity.NewRESTProvider(cfg.Identity), logger)
		identitySyncer = syncer
		logger.Info("identity provider sync enabled", "base_url", cfg.Identity.BaseURL)
	}

	authSvc := auth.NewService(auth.ServiceConfig{
		Guard: auth.NewLoginGuard(userRepo, issuer, cfg.Auth.MaxFailedAttempts, logger).
			WithUnknownCounter(auth.NewRedisFailureCounter(infra.Redis.Client, auth.DecoyTTL)),
		Issuer:    issuer,
		Users:     userSvc,
		Blacklist: auth.NewRedisBlacklist(infra.Redis.Client),
		Identity:  identitySyncer,
		Logger:    logger,
	})
	authHandler := auth.NewHandler(authSvc)

	reconcileHandler := reconcile.NewHandler(engine)

	healthHandler := health.NewHandler(infra.DB, infra.Redis, engine)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    infra.DB.Stats,
		RedisStats: infra.Redis.PoolStats,
		DBPing:     infra.DB.Ping,
		RedisPing:  infra.Redis.Ping,
		MirrorStatus: func(ctx context.Context) admin.MirrorState {
			st := engine.Status(ctx)
			return admin.MirrorState{
				Available:        st.Available,
				ExportCheckpoint: st.ExportCheckpoint,
				ImportCheckpoint: st.ImportCheckpoint,
			}
		},
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(infra.Redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen:   true,
			BypassFunc: middleware.IsProbe,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	loginLimiter := middleware.NewRateLimiter(infra.Redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerMinute(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateLimit),
		KeyFunc:  middleware.KeyByLoginEmail,
		FailOpen: true,
	}).Handler

	batchLimiter := middleware.NewRateLimiter(infra.Redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerHour(cfg.Sync.BatchesPerHour, cfg.Sync.BatchesPerHour),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	authenticator := middleware.Authenticator(authSvc)
	managerOnly := middleware.RequireManager

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, loginLimiter)
		signalementHandler.RegisterRoutes(r, authenticator, managerOnly)
		reconcileHandler.RegisterRoutes(r, authenticator, managerOnly, batchLimiter)
		userHandler.RegisterAdminRoutes(r, authenticator, managerOnly)
		adminHandler.RegisterRoutes(r, authenticator, managerOnly)

		if syncer != nil {
			identity.NewHandler(syncer, userRepo).
				RegisterRoutes(r, authenticator, managerOnly)
		}
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		infra.Close(context.Background())
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := engine.Wait(shutdownCtx); err != nil {
		logger.Warn("pending mirror pushes abandoned", "error", err)
	}

	infra.Close(shutdownCtx)

	logger.Info("application stopped")
	return nil
}
