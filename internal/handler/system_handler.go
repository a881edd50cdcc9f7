package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	db           Pinger
	rdb          *redis.Client
	sessionStore string
	startTime    time.Time
	log          zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, rdb *redis.Client, sessionStore string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:           db,
		rdb:          rdb,
		sessionStore: sessionStore,
		startTime:    time.Now(),
		log:          log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Postgres     string `json:"postgres"`
	Redis        string `json:"redis"`
	SessionStore string `json:"session_store"`
	Goroutines   int    `json:"goroutines"`

	// Worker Queues
	QueueCompletions int64 `json:"queue_completions"`
}

// Health godoc
// GET /health
// Pings PostgreSQL and Redis. Responds 503 when either is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Truncate(time.Second).String(),
		Postgres:     "ok",
		Redis:        "ok",
		SessionStore: h.sessionStore,
		Goroutines:   runtime.NumGoroutine(),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres ping failed")
		report.Postgres = "unreachable"
		report.Status = "degraded"
	}

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis ping failed")
		report.Redis = "unreachable"
		report.Status = "degraded"
	} else {
		report.QueueCompletions, _ = h.rdb.LLen(ctx, config.WorkerKey.AssignmentCompletionQueue).Result()
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
