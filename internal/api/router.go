package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"qron/internal/lobby"
)

// RouterConfig contains the dependencies of the HTTP surface. Designed for
// dependency injection: tests pass a coordinator and hub built around fakes.
type RouterConfig struct {
	// Coordinator is the matchmaking coordinator (required).
	Coordinator *lobby.Coordinator

	// Hub is the WebSocket hub (required).
	Hub *Hub

	// RateLimiter guards every route (required). The caller owns it and its
	// cleanup goroutine: construct with NewIPRateLimiter and Stop it on
	// shutdown.
	RateLimiter *IPRateLimiter

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// DisableLogging drops the request logger, useful in benchmarks.
	DisableLogging bool
}

// NewRouter constructs the router. It is pure: no goroutines, no listeners,
// safe for httptest. The rate limiter is injected, never constructed here, so
// its cleanup goroutine always has an owner that can Stop it.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.RateLimiter == nil {
		panic("api: RouterConfig.RateLimiter is required")
	}

	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS to reject early.
	r.Use(cfg.RateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/modes", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, cfg.Coordinator.Modes())
		})
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			stats := cfg.Coordinator.Stats()
			stats["connections"] = cfg.Hub.ClientCount()
			writeJSON(w, stats)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/ws", cfg.Hub.HandleWebSocket)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
