// Package config provides centralized configuration management. Every value
// here has a sane default and an environment override; nothing else in the
// codebase reads the environment for tuning.
package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 3000}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// GameConfig holds the simulation tuning shared by all matches.
type GameConfig struct {
	TickRate            int     // simulation steps per second
	BroadcastIntervalMs int     // snapshot cadence in milliseconds
	SpeedRampSeconds    int     // wall-clock seconds between speed increments
	SpeedIncrement      float64 // multiplier added per increment
	MaxSpeed            float64 // speed multiplier ceiling
	NearMissRadius      int     // Manhattan radius for near-miss signals
	BotCadence          int     // bots decide every N ticks
}

// DefaultGame returns the default simulation tuning.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:            20,
		BroadcastIntervalMs: 25,
		SpeedRampSeconds:    5,
		SpeedIncrement:      0.15,
		MaxSpeed:            2.5,
		NearMissRadius:      2,
		BotCadence:          4,
	}
}

// GameFromEnv returns simulation tuning with environment overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("BROADCAST_INTERVAL_MS", 0); v > 0 {
		cfg.BroadcastIntervalMs = v
	}
	if v := getEnvInt("SPEED_RAMP_SECONDS", 0); v > 0 {
		cfg.SpeedRampSeconds = v
	}
	if v := getEnvFloat("SPEED_INCREMENT", 0); v > 0 {
		cfg.SpeedIncrement = v
	}
	if v := getEnvFloat("MAX_SPEED", 0); v > 0 {
		cfg.MaxSpeed = v
	}
	return cfg
}

// LobbyConfig holds matchmaking tuning.
type LobbyConfig struct {
	SweepInterval time.Duration // pool inspection cadence
	WaitTimeout   time.Duration // oldest-member wait before backfill
	BotBackfill   bool          // false = pools wait for humans forever
	DefaultMode   string        // substituted for unknown mode ids
}

// DefaultLobby returns the default matchmaking tuning.
func DefaultLobby() LobbyConfig {
	return LobbyConfig{
		SweepInterval: 3 * time.Second,
		WaitTimeout:   15 * time.Second,
		BotBackfill:   true,
		DefaultMode:   "duel",
	}
}

// LobbyFromEnv returns matchmaking tuning with environment overrides.
func LobbyFromEnv() LobbyConfig {
	cfg := DefaultLobby()
	if v := getEnvInt("LOBBY_SWEEP_SECONDS", 0); v > 0 {
		cfg.SweepInterval = time.Duration(v) * time.Second
	}
	if v := getEnvInt("LOBBY_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.WaitTimeout = time.Duration(v) * time.Second
	}
	if os.Getenv("BOT_BACKFILL") == "false" {
		cfg.BotBackfill = false
	}
	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Game   GameConfig
	Lobby  LobbyConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Game:   GameFromEnv(),
		Lobby:  LobbyFromEnv(),
	}
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
