// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

const probeTimeout = 3 * time.Second

// MirrorStatus reports whether the mirror answers and where interrupted
// sync batches stopped.
type MirrorStatus func(ctx context.Context) MirrorState

type MirrorState struct {
	Available        bool   `json:"available"`
	ExportCheckpoint string `json:"export_checkpoint,omitempty"`
	ImportCheckpoint string `json:"import_checkpoint,omitempty"`
}

// HandlerConfig wires the stores the manager dashboard inspects. Any nil
// field is reported as absent rather than failing the request.
type HandlerConfig struct {
	DBStats      func() sql.DBStats
	DBPing       func(ctx context.Context) error
	RedisStats   func() *redis.PoolStats
	RedisPing    func(ctx context.Context) error
	MirrorStatus MirrorStatus
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// RegisterRoutes mounts the runtime stats for the manager. The component
// routes return one section of the full snapshot.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, managerOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/stats", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(managerOnly)

		r.Get("/", h.GetSystemStats)
		r.Get("/{component}", h.GetComponentStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.snapshot(r.Context()))
}

func (h *Handler) GetComponentStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch chi.URLParam(r, "component") {
	case "db":
		core.OK(w, h.database(ctx))
	case "redis":
		core.OK(w, h.redis(ctx))
	case "mirror":
		core.OK(w, h.mirror(ctx))
	case "runtime":
		core.OK(w, readRuntime())
	default:
		core.NotFound(w, "stats component")
	}
}

func (h *Handler) snapshot(ctx context.Context) SystemStatsResponse {
	return SystemStatsResponse{
		Database: h.database(ctx),
		Redis:    h.redis(ctx),
		Mirror:   h.mirror(ctx),
		Runtime:  readRuntime(),
	}
}

func (h *Handler) database(ctx context.Context) DatabaseStatus {
	status := DatabaseStatus{Healthy: probe(ctx, h.cfg.DBPing)}
	if h.cfg.DBStats == nil {
		return status
	}

	s := h.cfg.DBStats()
	status.Stats = &DBPoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration.String(),
		MaxIdleClosed:      s.MaxIdleClosed,
		MaxIdleTimeClosed:  s.MaxIdleTimeClosed,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
	}
	return status
}

func (h *Handler) redis(ctx context.Context) RedisStatus {
	status := RedisStatus{Healthy: probe(ctx, h.cfg.RedisPing)}
	if h.cfg.RedisStats == nil {
		return status
	}

	s := h.cfg.RedisStats()
	status.Stats = &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		StaleConns: s.StaleConns,
	}
	return status
}

func (h *Handler) mirror(ctx context.Context) *MirrorState {
	if h.cfg.MirrorStatus == nil {
		return nil
	}
	state := h.cfg.MirrorStatus(ctx)
	return &state
}

// probe reports false when ping is missing or fails within probeTimeout.
func probe(ctx context.Context, ping func(ctx context.Context) error) bool {
	if ping == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return ping(ctx) == nil
}

func readRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     mem.Alloc,
		MemSys:       mem.Sys,
		NumGC:        mem.NumGC,
	}
}
