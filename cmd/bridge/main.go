package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iacriptoficial/hypermid-bridge/internal/account"
	"github.com/iacriptoficial/hypermid-bridge/internal/api"
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

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	log.Printf("loaded configuration: environment=%s port=%s db=%s", cfg.Environment, cfg.Port, cfg.DBPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := bridgedb.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := bridgedb.ApplyMigrations(database); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	j := journal.New(database)

	registry, err := strategy.New(database)
	if err != nil {
		log.Fatalf("failed to initialize strategy registry: %v", err)
	}

	locks := symlock.New(cfg.SymbolLockTimeout)

	key, err := cfg.ActiveKey()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	port := venue.NewHyperliquid(venue.HyperliquidConfig{
		PrivateKey: key,
		BaseURL:    cfg.ActiveBaseURL(),
	})

	resolver := account.New(port)
	addr, err := resolver.Resolve(ctx, cfg.WalletAddress)
	if err != nil {
		log.Fatalf("failed to resolve account address: %v", err)
	}
	log.Printf("resolved master account address: %s", addr)

	balanceCache := balance.New(port, addr, cfg.BalanceCacheTTL)
	if err := balanceCache.Sync(ctx); err != nil {
		log.Printf("warning: initial balance sync failed: %v", err)
	}

	eng := engine.New(port, j, registry, engine.DefaultConfig())

	prober := uptime.New(cfg.UptimeProbeTarget, cfg.UptimeProbeInterval)
	go prober.Run(ctx)

	server := api.New(api.Deps{
		Config:    cfg,
		DB:        database,
		Journal:   j,
		Registry:  registry,
		Locks:     locks,
		Balance:   balanceCache,
		Resolver:  resolver,
		Engine:    eng,
		Prober:    prober,
		KeyAddr:   cfg.WalletAddress,
		Addr:      addr,
		StartedAt: time.Now(),
	})

	go func() {
		if err := server.Run(ctx, ":"+cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()
	log.Printf("hypermid-bridge listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Println("shutting down")
}
