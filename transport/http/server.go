package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Coykto/debug-mcp/config"
	"github.com/Coykto/debug-mcp/gateway"
	"github.com/Coykto/debug-mcp/logger"
)

const sessionIdleTimeout = 10 * time.Minute

// Server hosts the streamable HTTP transport on /mcp.
type Server struct {
	gateway        *gateway.Gateway
	sessionManager *SessionManager
	config         *config.Config
	echo           *echo.Echo
}

func NewServer(cfg *config.Config, gw *gateway.Gateway) *Server {
	s := &Server{
		gateway:        gw,
		sessionManager: NewSessionManager(),
		config:         cfg,
		echo:           echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerSessionID, headerProtocolVersion, "Last-Event-ID"},
	}))
	RegisterRoutes(s.echo, s)
}

// Start listens until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go s.runSessionCleanup(cleanupCtx)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	logger.Info("Streamable HTTP server starting to listen", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		return nil
	}
}

func (s *Server) runSessionCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessionManager.CleanupSessions(sessionIdleTimeout); removed > 0 {
				logger.Debug("Expired MCP sessions removed", "count", removed)
			}
		}
	}
}

func (s *Server) GetSessionManager() *SessionManager {
	return s.sessionManager
}
