// Package input validates and rate-limits directional commands before they
// reach a match, and screens input cadence for bot-like patterns.
package input

import (
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"qron/internal/game"
	"qron/internal/metrics"
)

const (
	// MinInputInterval is the minimum delay between two accepted commands
	// from the same participant.
	MinInputInterval = 50 * time.Millisecond

	// WindowSize is the number of recent arrival timestamps kept per
	// participant for cadence analysis.
	WindowSize = 20

	// UniformStdDev is the inter-arrival standard deviation below which a
	// full window counts as a bot-pattern violation. Human timing is never
	// this regular.
	UniformStdDev = 10 * time.Millisecond

	// MaxViolations permanently flags a participant for the remainder of
	// its connection.
	MaxViolations = 3
)

// Result classifies the outcome of one inbound command.
type Result string

const (
	ResultOK       Result = "ok"
	ResultBadToken Result = "bad_token"
	ResultTooFast  Result = "too_fast"
	ResultFlagged  Result = "flagged"
)

// session tracks one participant's input cadence.
type session struct {
	limiter    *rate.Limiter
	arrivals   [WindowSize]time.Time
	count      int // total arrivals recorded
	violations int
	flagged    bool
}

// Gateway screens every inbound directional command. State is per connection:
// it is discarded on Remove, so flags never survive a reconnect.
type Gateway struct {
	mu       sync.Mutex
	sessions map[string]*session
	audit    *game.EventLog
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{sessions: make(map[string]*session)}
}

// SetAuditLog attaches the lifecycle audit log; flags are recorded there.
func (g *Gateway) SetAuditLog(el *game.EventLog) {
	g.audit = el
}

// Process validates one directional command arriving at the given time.
// On ResultOK the returned direction may be forwarded to the match; any other
// result means the command was dropped without touching match state.
func (g *Gateway) Process(participantID, token string, at time.Time) (game.Dir, Result) {
	dir, ok := game.ParseDir(token)
	if !ok {
		metrics.InputRejected(string(ResultBadToken))
		return game.Dir{}, ResultBadToken
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.sessions[participantID]
	if s == nil {
		s = &session{limiter: rate.NewLimiter(rate.Every(MinInputInterval), 1)}
		g.sessions[participantID] = s
	}

	if s.flagged {
		// Permanently muted: silent rejection, no further penalty growth.
		metrics.InputRejected(string(ResultFlagged))
		return game.Dir{}, ResultFlagged
	}

	// Cadence screening runs on every arrival, accepted or not.
	s.arrivals[s.count%WindowSize] = at
	s.count++
	if s.count >= WindowSize && uniformCadence(s) {
		g.violate(participantID, s)
		if s.flagged {
			metrics.InputRejected(string(ResultFlagged))
			return game.Dir{}, ResultFlagged
		}
	}

	if !s.limiter.AllowN(at, 1) {
		g.violate(participantID, s)
		metrics.InputRejected(string(ResultTooFast))
		return game.Dir{}, ResultTooFast
	}

	return dir, ResultOK
}

// violate increments the warning counter and flips the permanent flag once
// the threshold is reached.
func (g *Gateway) violate(participantID string, s *session) {
	if s.flagged {
		return
	}
	s.violations++
	if s.violations >= MaxViolations {
		s.flagged = true
		metrics.AnticheatFlagged()
		g.audit.Emit(game.AuditEvent{Type: game.AuditFlagged, ParticipantID: participantID, Detail: map[string]any{
			"violations": s.violations,
		}})
		log.Printf("🚫 Participant %s flagged for suspicious input cadence", participantID)
	}
}

// Flagged reports whether a participant is permanently muted.
func (g *Gateway) Flagged(participantID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[participantID]
	return s != nil && s.flagged
}

// Remove discards all tracking state for a participant. Flags do not persist
// across reconnects.
func (g *Gateway) Remove(participantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, participantID)
}

// uniformCadence reports whether the inter-arrival intervals over the rolling
// window are suspiciously regular.
func uniformCadence(s *session) bool {
	// Reconstruct the window in arrival order, oldest first.
	ordered := make([]time.Time, 0, WindowSize)
	start := s.count % WindowSize
	for i := 0; i < WindowSize; i++ {
		ordered = append(ordered, s.arrivals[(start+i)%WindowSize])
	}

	intervals := make([]float64, 0, WindowSize-1)
	for i := 1; i < len(ordered); i++ {
		intervals = append(intervals, ordered[i].Sub(ordered[i-1]).Seconds())
	}

	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	variance := 0.0
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	return math.Sqrt(variance) < UniformStdDev.Seconds()
}
