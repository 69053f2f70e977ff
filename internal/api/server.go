// Package api is the Ingress Facade (C10): payload validation, strategy
// resolution, journal receive, symbol-lock-scoped dispatch to the
// Execution Engine, and every HTTP route in the external interface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/account"
	"github.com/iacriptoficial/hypermid-bridge/internal/balance"
	"github.com/iacriptoficial/hypermid-bridge/internal/engine"
	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/strategy"
	"github.com/iacriptoficial/hypermid-bridge/internal/symlock"
	"github.com/iacriptoficial/hypermid-bridge/internal/uptime"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
	"github.com/iacriptoficial/hypermid-bridge/pkg/config"
)

// Server wires the HTTP surface around the process-wide singletons.
type Server struct {
	Router *gin.Engine

	cfg      *config.Config
	db       *bridgedb.Database
	journal  *journal.Store
	registry *strategy.Registry
	locks    *symlock.Manager
	balance  *balance.Cache
	resolver *account.Resolver
	engine   *engine.Engine
	prober   *uptime.Prober

	startedAt time.Time

	addrMu  sync.RWMutex
	keyAddr string
	addr    string
	env     string
}

// Deps bundles the singletons a Server is built from.
type Deps struct {
	Config    *config.Config
	DB        *bridgedb.Database
	Journal   *journal.Store
	Registry  *strategy.Registry
	Locks     *symlock.Manager
	Balance   *balance.Cache
	Resolver  *account.Resolver
	Engine    *engine.Engine
	Prober    *uptime.Prober
	KeyAddr   string
	Addr      string
	StartedAt time.Time
}

// New builds a Server and wires every route.
func New(d Deps) *Server {
	r := gin.New()

	// Middleware order matters: recover first, then identify the
	// request, then log it, then rate-limit, then bound its lifetime,
	// then CORS right before the handler runs.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		cfg:       d.Config,
		db:        d.DB,
		journal:   d.Journal,
		registry:  d.Registry,
		locks:     d.Locks,
		balance:   d.Balance,
		resolver:  d.Resolver,
		engine:    d.Engine,
		prober:    d.Prober,
		startedAt: d.StartedAt,
		keyAddr:   d.KeyAddr,
		addr:      d.Addr,
		env:       d.Config.Environment,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.POST("/webhook/tradingview", s.webhookTradingView)
		api.POST("/webhook/re-execute", s.webhookReExecute)

		api.GET("/status", s.getStatus)

		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.deleteLogs)
		api.GET("/webhooks", s.getWebhooks)
		api.GET("/responses", s.getResponses)

		api.GET("/strategies", s.getStrategies)
		api.GET("/strategies/ids", s.getStrategyIDs)
		api.GET("/strategies/:id", s.getStrategy)
		api.POST("/strategies/:id/toggle", s.toggleStrategy)

		api.GET("/environment", s.getEnvironment)
		api.POST("/environment", s.postEnvironment)
		api.POST("/restart", s.postRestart)
		api.POST("/reset-uptime-stats", s.postResetUptimeStats)

		api.GET("/orders/history", s.getOrderHistory)
		api.GET("/orders/open", s.getOpenOrders)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) currentAddr() (keyAddr, addr string) {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.keyAddr, s.addr
}

func (s *Server) currentEnvironment() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.env
}

// currentPort exposes the venue port the engine is presently wired to,
// used by the read-only orders/history and orders/open pass-throughs.
func (s *Server) currentPort() venue.Port {
	return s.engine.CurrentPort()
}
