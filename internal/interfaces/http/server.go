// Package http exposes the claim, approval, currency and receipt operations
// over JSON. Callers identify themselves with the X-User-ID header.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
)

// Logger takes a message plus alternating keys and values
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Pinger reports database reachability for the health check
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ServerConfig holds listener and request limits
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DefaultServerConfig returns the settings used when none are configured
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
	}
}

// Dependencies are the collaborators the handlers call into. Scanner may be
// nil, in which case receipt scanning answers 503.
type Dependencies struct {
	Submission service.SubmissionService
	Decision   service.DecisionService
	Policy     service.PolicyService
	Claims     service.ClaimService
	Directory  port.DirectoryRepository
	Gateway    port.CurrencyGateway
	Scanner    port.ReceiptScanner
	DB         Pinger
}

// Server routes HTTP requests to the application services
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer builds the router. Nothing listens until Start or Serve.
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{config: config, router: gin.New(), deps: deps, logger: logger}
	s.router.MaxMultipartMemory = config.MaxUploadBytes
	s.router.Use(gin.Recovery(), requestIDMiddleware(), s.loggingMiddleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	h := NewHandlers(s.deps, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.Use(authMiddleware(s.deps.Directory, s.logger))
	{
		claims := api.Group("/claims")
		claims.POST("", h.SubmitClaim)
		claims.GET("", h.ListClaims)
		claims.GET("/mine", h.ListMyClaims)
		claims.GET("/pending-approvals", h.ListPendingApprovals)
		claims.GET("/export", h.ExportClaims)
		claims.GET("/:id", h.GetClaim)

		approvals := api.Group("/approvals")
		approvals.POST("/:claimId/decision", h.Decide)
		approvals.POST("/policies", h.CreatePolicy)
		approvals.GET("/policies", h.ListPolicies)
		approvals.GET("/policies/active", h.ActivePolicy)

		currency := api.Group("/currency")
		currency.GET("/rate/:from/:to", h.GetRate)
		currency.GET("/rates/:base", h.GetRates)

		api.POST("/receipts/scan", h.ScanReceipt)
	}
}

// Start listens on Address and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled, then drains
// in-flight requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server failed", "error", err)
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop drains and closes the server. It is a no-op before Serve.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown incomplete", "error", err, "timeout", timeout.String())
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin engine so tests can drive it with httptest
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address is host:port from the config
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}
