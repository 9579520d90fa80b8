package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"qron/internal/api"
	"qron/internal/config"
	"qron/internal/game"
	"qron/internal/input"
	"qron/internal/lobby"
	"qron/internal/metrics"
	"qron/internal/settlement"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  QRON ARENA SERVER")
	log.Println("🎮 ================================")

	cfg := config.Load()
	modes := game.DefaultModes()
	log.Printf("🎮 Config: %d TPS, broadcast every %dms, max speed %.2fx",
		cfg.Game.TickRate, cfg.Game.BroadcastIntervalMs, cfg.Game.MaxSpeed)
	for _, m := range modes {
		log.Printf("🗺️  Mode %s: %d players, grid %d, prize %.2f", m.Name, m.Players, m.GridSize, m.Prize)
	}

	// Lifecycle audit log (JSONL).
	audit := game.NewEventLog()
	auditPath := os.Getenv("EVENT_LOG_PATH")
	if auditPath == "" {
		auditPath = "events.jsonl"
	}
	if err := audit.Start(auditPath); err != nil {
		log.Printf("⚠️ Audit log disabled: %v", err)
	} else {
		log.Printf("📝 Audit log: %s", auditPath)
		defer audit.Stop()
	}

	// Debug server (pprof + prometheus), localhost only.
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		metrics.StartDebugServer(metrics.DefaultDebugConfig())
	}

	// Settlement collaborator: webhook when configured, log otherwise.
	settler := settlement.FromEnv(os.Getenv("SETTLEMENT_URL"))
	if url := os.Getenv("SETTLEMENT_URL"); url != "" {
		log.Printf("💸 Settlement webhook: %s", url)
	}

	matchCfg := game.MatchConfig{
		TickRate:          cfg.Game.TickRate,
		BroadcastInterval: time.Duration(cfg.Game.BroadcastIntervalMs) * time.Millisecond,
		SpeedRampInterval: time.Duration(cfg.Game.SpeedRampSeconds) * time.Second,
		SpeedIncrement:    cfg.Game.SpeedIncrement,
		MaxSpeed:          cfg.Game.MaxSpeed,
		NearMissRadius:    cfg.Game.NearMissRadius,
		BotCadence:        cfg.Game.BotCadence,
	}
	lobbyCfg := lobby.Config{
		SweepInterval: cfg.Lobby.SweepInterval,
		WaitTimeout:   cfg.Lobby.WaitTimeout,
		BotBackfill:   cfg.Lobby.BotBackfill,
		DefaultMode:   cfg.Lobby.DefaultMode,
	}

	hub := api.NewHub()
	coordinator := lobby.NewCoordinator(modes, lobbyCfg, matchCfg, hub, settler)
	coordinator.SetAuditLog(audit)
	gateway := input.NewGateway()
	gateway.SetAuditLog(audit)
	hub.Bind(coordinator, gateway)
	coordinator.Start()
	defer coordinator.Stop()

	rateLimiter := api.NewIPRateLimiter(api.DefaultRateLimitConfig)
	defer rateLimiter.Stop()
	router := api.NewRouter(api.RouterConfig{
		Coordinator: coordinator,
		Hub:         hub,
		RateLimiter: rateLimiter,
	})

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("🚀 Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown error: %v", err)
	}
}
