package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// bodyLimit caps request bodies; task payloads are paths and options, not media
const bodyLimit = "1M"

// Server is the local control API server
type Server struct {
	echo   *echo.Echo
	config config.ServerConfig
	logger *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewEchoServer creates a new Echo server instance
func NewEchoServer(cfg *config.Config, log *logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// a zero write timeout lets ?wait=true requests outlive long tasks
	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second

	setupMiddleware(e, log)

	return &Server{
		echo:   e,
		config: cfg.Server,
		logger: log,
	}
}

// setupMiddleware configures Echo middleware
func setupMiddleware(e *echo.Echo, log *logger.Logger) {
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))

	// the control API only serves the local machine
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Use(middleware.RequestID())
	e.Use(requestLoggerMiddleware(log))
}

// requestLoggerMiddleware logs every request at verbose level
func requestLoggerMiddleware(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			log.Verbose("HTTP request",
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			)
			return err
		}
	}
}

// GetEcho returns the Echo instance
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// Addr is the bound address once listening, the configured one before
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Listen binds the configured address. Start calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.echo.Listener = ln
	return nil
}

// Start serves until Shutdown
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("Starting HTTP server", zap.String("address", s.Addr()))
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// ShutdownTimeout is how long Shutdown may wait for in-flight requests
func (s *Server) ShutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.config.ShutdownTimeout) * time.Second
}

// Response is a standard API response structure
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
	Message string `json:"message"`
}

// SuccessResponse creates a success response
func SuccessResponse(c echo.Context, statusCode int, data any, message string) error {
	return c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse creates an error response
func ErrorResponse(c echo.Context, statusCode int, err any, message string) error {
	return c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
		Message: message,
	})
}
