package handler

import (
	"mediaq/internal/pkg/health"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the control API. A non-empty secret guards the
// task routes with bearer tokens; health and metrics stay open.
func RegisterRoutes(e *echo.Echo, h *TaskHandler, healthService *health.Service, gatherer prometheus.Gatherer, secret string) {
	e.GET("/health", health.Handler(healthService))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	if secret != "" {
		api.Use(JWTMiddleware([]byte(secret)))
	}

	api.POST("/tasks", h.Submit)
	api.GET("/status", h.Status)
	api.GET("/workers", h.Workers)
}
