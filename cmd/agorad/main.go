package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"agora/config"
	"agora/core/events"
	"agora/core/state"
	"agora/core/types"
	"agora/native/marketplace"
	"agora/observability/logging"
	"agora/rpc"
	"agora/storage"
)

const shutdownTimeout = 10 * time.Second

// slogEmitter forwards engine events to the structured log so a bare daemon
// still has a human-readable trace of settlement activity. The persisted
// audit log in the ledger remains the authoritative record.
type slogEmitter struct {
	log *slog.Logger
}

func (e slogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{"type", evt.EventType()}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, key, value)
			}
		}
	}
	e.log.Info("settlement event", args...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AGORA_ENV"))
	logger := logging.Setup("agorad", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open ledger database: %v", err))
	}
	defer db.Close()

	engine := marketplace.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetEmitter(slogEmitter{log: logger})
	engine.SetRankingHalfLife(cfg.RankingHalfLifeSeconds)
	if err := engine.SetTierSchedule(cfg.MarketplaceTierSchedule()); err != nil {
		panic(fmt.Sprintf("Invalid tier schedule: %v", err))
	}

	server := rpc.NewServer(engine, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	logger.Info("marketplace settlement engine started",
		"network", cfg.NetworkName,
		"rpc", cfg.RPCAddress,
		"dataDir", cfg.DataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("rpc server failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
