// Package server is the HTTP front end described in spec.md §4.8: it
// mounts one POST route per configured webhook path, a /health probe,
// and a /metrics endpoint, and turns each request into a call into
// the dispatcher.
package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/acfabro/git-actions/internal/config"
	"github.com/acfabro/git-actions/internal/dispatcher"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an echo.Echo configured per a resolved Config and wired
// to a Dispatcher.
type Server struct {
	echo       *echo.Echo
	dispatcher *dispatcher.Dispatcher
	drainTimeout time.Duration
}

// New builds a Server with one POST route per dispatch-table path.
// GET /health always answers 200 once the Server exists, which is only
// after the dispatch table has been loaded.
func New(cfg *config.Config, d *dispatcher.Dispatcher) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(io.Discard)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingMiddleware())

	s := &Server{echo: e, dispatcher: d, drainTimeout: cfg.DrainTimeout}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	for path := range cfg.DispatchTable {
		e.POST(path, s.handleWebhook)
	}

	return s
}

func loggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Printf("server: %s %s request_id=%s", req.Method, req.URL.Path, c.Response().Header().Get(echo.HeaderXRequestID))
			return next(c)
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}

	res := s.dispatcher.HandleDelivery(c.Request().Context(), c.Request().URL.Path, body, c.Request().Header)
	return c.JSON(res.StatusCode, res.Body)
}

// Start runs the HTTP server until the process receives a shutdown
// signal or ctx is cancelled, then drains in-flight deliveries and
// matched-rule actions before returning.
func (s *Server) Start(ctx context.Context, listenAddress string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(listenAddress); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("server: shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: echo shutdown error: %v", err)
	}

	if err := s.dispatcher.Drain(s.drainTimeout); err != nil {
		log.Printf("server: %v", err)
		return err
	}
	return nil
}
