package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

func (s *Server) getEnvironment(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"environment": s.currentEnvironment()})
}

// postEnvironment switches the process between testnet and mainnet without
// tearing down any of the other process-wide singletons: it builds a fresh
// Hyperliquid client for the requested environment and repoints the
// engine, account resolver, and balance cache at it via their SetPort
// hooks, then re-resolves the master address under the new venue.
func (s *Server) postEnvironment(c *gin.Context) {
	env := c.Query("environment")
	key, err := s.cfg.KeyFor(env)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ENVIRONMENT", err.Error())
		return
	}

	port := venue.NewHyperliquid(venue.HyperliquidConfig{
		PrivateKey: key,
		BaseURL:    s.cfg.BaseURLFor(env),
	})

	s.resolver.SetPort(port)
	s.engine.SetPort(port)

	keyAddr, _ := s.currentAddr()
	addr, err := s.resolver.Resolve(c.Request.Context(), keyAddr)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "CONFIGURATION_ERROR", err.Error())
		return
	}

	s.balance.SetPort(port, addr)

	s.addrMu.Lock()
	s.addr = addr
	s.env = env
	s.addrMu.Unlock()

	_, _ = s.journal.AppendLog(c.Request.Context(), journal.LevelInfo, "switched environment", map[string]any{
		"environment": env,
	})

	c.JSON(http.StatusOK, gin.H{"environment": env})
}

// postRestart logs the request and exits; a process supervisor (systemd,
// supervisord) configured to restart this service on exit is what
// actually brings it back up, mirroring the original's delegation to
// supervisorctl rather than attempting an in-process re-exec.
func (s *Server) postRestart(c *gin.Context) {
	_, _ = s.journal.AppendLog(c.Request.Context(), journal.LevelInfo, "restart requested", nil)
	c.JSON(http.StatusOK, gin.H{"status": "restart requested"})

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = s.db.Close()
		os.Exit(0)
	}()
}

func (s *Server) postResetUptimeStats(c *gin.Context) {
	s.prober.ResetStats()
	c.JSON(http.StatusOK, renderUptimeStats(s.prober.Stats()))
}
