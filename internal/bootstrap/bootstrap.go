// AngelaMos | 2026
// bootstrap.go

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/mirror"
	"github.com/carterperez-dev/roadwatch/internal/notify"
	"github.com/carterperez-dev/roadwatch/internal/reconcile"
	"github.com/carterperez-dev/roadwatch/internal/signalement"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

// Infra holds the connections shared by the API server and the CLI.
type Infra struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *core.Telemetry
	DB        *core.Database
	Redis     *core.Redis
	Mirror    mirror.Mirror
	Publisher notify.Publisher
	IDs       *core.IDGenerator
}

func NewLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Open connects every backing service. The relational store and redis are
// required; a failing MQTT broker only disables notifications.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	infra := &Infra{
		Config: cfg,
		Logger: logger,
		IDs:    core.NewIDGenerator(cfg.IDs.SnowflakeNode),
	}

	if cfg.Otel.Enabled {
		tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if err != nil {
			logger.Warn("failed to initialize telemetry", "error", err)
		} else {
			infra.Telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	infra.DB = db
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		infra.Close(ctx)
		return nil, err
	}
	infra.Redis = rdb
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	m, err := openMirror(ctx, cfg.Mirror)
	if err != nil {
		infra.Close(ctx)
		return nil, err
	}
	infra.Mirror = m
	logger.Info("mirror configured",
		"backend", cfg.Mirror.Backend,
		"collection", cfg.Mirror.Collection,
	)

	infra.Publisher = openPublisher(cfg.MQTT, logger)

	return infra, nil
}

func openMirror(ctx context.Context, cfg config.MirrorConfig) (mirror.Mirror, error) {
	switch cfg.Backend {
	case config.MirrorBackendMemory:
		return mirror.NewMemory(), nil
	case config.MirrorBackendMongo:
		m, err := mirror.NewMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("open mirror: unknown backend %q", cfg.Backend)
	}
}

func openPublisher(cfg config.MQTTConfig, logger *slog.Logger) notify.Publisher {
	if !cfg.Enabled {
		return notify.Noop{}
	}

	pub, err := notify.NewMQTTPublisher(cfg, logger)
	if err != nil {
		logger.Warn("mqtt unavailable, status notifications disabled", "error", err)
		return notify.Noop{}
	}

	logger.Info("mqtt connected", "broker", cfg.Broker)
	return pub
}

// Engine builds the reconcile engine on top of the opened services.
func (i *Infra) Engine(
	signalements signalement.Repository,
	users user.Repository,
) *reconcile.Engine {
	return reconcile.NewEngine(reconcile.Config{
		Repo:   signalements,
		Mirror: i.Mirror,
		Users:  users,
		Checkpoints: reconcile.NewRedisCheckpoints(
			i.Redis.Client,
			i.Config.Sync.CheckpointTTL,
		),
		Publisher:    i.Publisher,
		Tracer:       i.tracer(),
		Logger:       i.Logger,
		Collection:   i.Config.Mirror.Collection,
		ProbeTimeout: i.Config.Mirror.ProbeTimeout,
		PushTimeout:  i.Config.Mirror.PushTimeout,
	})
}

func (i *Infra) tracer() trace.Tracer {
	if i.Telemetry == nil {
		return nil
	}
	return i.Telemetry.Tracer
}

// Close releases everything Open acquired, in reverse order.
func (i *Infra) Close(ctx context.Context) {
	var errs []error

	if i.Publisher != nil {
		i.Publisher.Close()
	}
	if i.Mirror != nil {
		errs = append(errs, i.Mirror.Close(ctx))
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.Telemetry != nil {
		errs = append(errs, i.Telemetry.Shutdown(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		i.Logger.Error("shutdown error", "error", err)
	}
}
