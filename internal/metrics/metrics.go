// Package metrics holds the prometheus collectors and the localhost-only
// debug server. It sits below game, lobby, input and api so all of them can
// record without import cycles. Label cardinality is bounded everywhere: mode
// ids and fixed reason strings only, never participant ids.
package metrics

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	matchesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_matches_active",
		Help: "Currently running matches",
	})

	matchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_matches_started_total",
		Help: "Matches started",
	}, []string{"mode"})

	matchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_matches_finished_total",
		Help: "Matches finished",
	}, []string{"mode"})

	eliminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_eliminations_total",
		Help: "Participants eliminated",
	})

	lobbyWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lobby_waiting_players",
		Help: "Participants waiting in a lobby pool",
	}, []string{"mode"})

	botsBackfilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lobby_bots_backfilled_total",
		Help: "Bot participants synthesized on lobby timeout",
	})

	inputsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "input_rejected_total",
		Help: "Directional inputs rejected by the gateway",
	}, []string{"reason"}) // bounded: "bad_token", "too_fast", "flagged"

	anticheatFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "input_anticheat_flagged_total",
		Help: "Participants permanently flagged by the anti-cheat filter",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})
)

// ObserveTick records one simulation tick duration.
func ObserveTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// MatchStarted records a match start.
func MatchStarted(mode string) {
	matchesStarted.WithLabelValues(mode).Inc()
	matchesActive.Inc()
}

// MatchFinished records a match termination.
func MatchFinished(mode string) {
	matchesFinished.WithLabelValues(mode).Inc()
	matchesActive.Dec()
}

// ParticipantEliminated records an elimination.
func ParticipantEliminated() { eliminations.Inc() }

// UpdateLobbyWaiting sets the waiting count for one mode's pool.
func UpdateLobbyWaiting(mode string, count int) {
	lobbyWaiting.WithLabelValues(mode).Set(float64(count))
}

// BotBackfilled records one synthesized bot.
func BotBackfilled() { botsBackfilled.Inc() }

// InputRejected records a rejected directional input.
// reason must be one of: "bad_token", "too_fast", "flagged".
func InputRejected(reason string) { inputsRejected.WithLabelValues(reason).Inc() }

// AnticheatFlagged records a participant being permanently flagged.
func AnticheatFlagged() { anticheatFlagged.Inc() }

// ConnectionRejected records a rejected connection attempt.
func ConnectionRejected(reason string) { connectionRejected.WithLabelValues(reason).Inc() }

// UpdateWSConnections sets the active WebSocket connection gauge.
func UpdateWSConnections(count int) { wsConnections.Set(float64(count)) }

// DebugConfig configures the internal observability server.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string // keep on localhost in production
}

// DefaultDebugConfig returns safe defaults.
func DefaultDebugConfig() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the pprof + metrics server. It MUST bind to
// localhost unless explicitly overridden via ALLOW_DEBUG_EXTERNAL.
func StartDebugServer(cfg DebugConfig) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return
	}
	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("📊 Debug server on %s (pprof, metrics)", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
}
