package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/deppfellow/itembatch/internal/middleware"
	"github.com/deppfellow/itembatch/internal/server"
	"github.com/labstack/echo/v4"
)

// HealthHandler serves GET /status for load balancers and monitors.
type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type dependencyCheck struct {
	name     string
	required bool
	ping     func(ctx context.Context) error
}

// CheckHealth checks the configured dependencies. A failing required
// dependency (the database) turns the answer into 503; Redis only backs
// background runs, so its failure degrades the status but keeps 200.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	cfg := h.server.Config.Observability.HealthChecks

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	var deps []dependencyCheck
	if h.server.Config.Observability.HealthCheckEnabled("database") && h.server.DB != nil {
		deps = append(deps, dependencyCheck{name: "database", required: true, ping: h.server.DB.Ping})
	}
	if h.server.Config.Observability.HealthCheckEnabled("redis") && h.server.Redis != nil {
		deps = append(deps, dependencyCheck{name: "redis", ping: func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		}})
	}

	checks := make(map[string]any, len(deps)+1)
	status := "healthy"

	for _, dep := range deps {
		ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.Timeout)
		depStart := time.Now()
		err := dep.ping(ctx)
		elapsed := time.Since(depStart)
		cancel()

		if err != nil {
			checks[dep.name] = map[string]any{
				"status":        "unhealthy",
				"response_time": elapsed.String(),
				"error":         err.Error(),
			}
			if dep.required {
				status = "unhealthy"
			} else if status == "healthy" {
				status = "degraded"
			}

			logger.Error().Err(err).Str("check", dep.name).Dur("response_time", elapsed).Msg("health check failed")
			h.recordHealthError(dep.name, err, elapsed)
			continue
		}

		checks[dep.name] = map[string]any{
			"status":        "healthy",
			"response_time": elapsed.String(),
		}
	}

	if pool := h.server.Pool; pool != nil {
		checks["worker_pool"] = map[string]any{
			"status":  poolStatus(pool.Cancelled()),
			"workers": pool.Size(),
			"active":  pool.Active(),
			"pending": pool.Pending(),
		}
	}

	response := map[string]any{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	logger.Debug().Str("status", status).Dur("total_duration", time.Since(start)).Msg("health check done")

	if status == "unhealthy" {
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}

func poolStatus(cancelled bool) string {
	if cancelled {
		return "cancelled"
	}
	return "running"
}

func (h *HealthHandler) recordHealthError(check string, err error, elapsed time.Duration) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}
	app.RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}
