// Package lobby routes participants through per-mode waiting pools into match
// instances. The Coordinator owns every lobby and match collection in the
// process; there is no other registry.
package lobby

import (
	"fmt"
	"log"
	"sync"
	"time"

	"qron/internal/game"
	"qron/internal/metrics"
)

// Config tunes the matchmaking sweeps.
type Config struct {
	SweepInterval time.Duration // how often non-full pools are inspected
	WaitTimeout   time.Duration // oldest-member wait before bot backfill
	BotBackfill   bool          // when false, pools wait indefinitely
	DefaultMode   string        // substituted for unknown mode ids
}

// DefaultConfig returns the standard matchmaking tuning.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 3 * time.Second,
		WaitTimeout:   15 * time.Second,
		BotBackfill:   true,
		DefaultMode:   "duel",
	}
}

// pending is a lobby member with its enqueue time; pools are oldest-first.
type pending struct {
	p        *game.Participant
	joinedAt time.Time
}

type pool struct {
	mode    game.Mode
	members []pending
}

func (pl *pool) ids() []string {
	ids := make([]string, 0, len(pl.members))
	for _, m := range pl.members {
		ids = append(ids, m.p.ID)
	}
	return ids
}

// Coordinator owns one waiting pool per mode and the registry of running
// matches. A participant is in at most one of them at a time; every move is
// an atomic remove-then-assign under the coordinator lock.
type Coordinator struct {
	mu      sync.Mutex
	modes   []game.Mode
	pools   map[string]*pool       // mode id -> waiting pool
	matches map[string]*game.Match // match id -> running match
	inLobby map[string]string      // participant id -> mode id
	inMatch map[string]string      // participant id -> match id

	cfg      Config
	matchCfg game.MatchConfig
	sink     game.Sink
	settler  game.Settler
	audit    *game.EventLog

	started  uint64
	botCount int

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCoordinator builds the coordinator with one pool per configured mode.
func NewCoordinator(modes []game.Mode, cfg Config, matchCfg game.MatchConfig, sink game.Sink, settler game.Settler) *Coordinator {
	c := &Coordinator{
		modes:    modes,
		pools:    make(map[string]*pool, len(modes)),
		matches:  make(map[string]*game.Match),
		inLobby:  make(map[string]string),
		inMatch:  make(map[string]string),
		cfg:      cfg,
		matchCfg: matchCfg,
		sink:     sink,
		settler:  settler,
		stopChan: make(chan struct{}),
	}
	for _, m := range modes {
		c.pools[m.ID] = &pool{mode: m}
	}
	return c
}

// SetAuditLog attaches the lifecycle audit log.
func (c *Coordinator) SetAuditLog(el *game.EventLog) {
	c.audit = el
}

// Start launches the periodic timeout sweep.
func (c *Coordinator) Start() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep(time.Now())
			case <-c.stopChan:
				return
			}
		}
	}()
	log.Printf("🧭 Coordinator started: %d modes, backfill=%v", len(c.modes), c.cfg.BotBackfill)
}

// Stop halts the sweep and every running match.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.mu.Lock()
	matches := make([]*game.Match, 0, len(c.matches))
	for _, m := range c.matches {
		matches = append(matches, m)
	}
	c.mu.Unlock()
	for _, m := range matches {
		m.Stop()
	}
}

// Modes returns the configured mode catalog.
func (c *Coordinator) Modes() []game.Mode {
	return c.modes
}

// Join creates a participant and enqueues it for the requested mode.
func (c *Coordinator) Join(name, wallet, modeID string) *game.Participant {
	p := game.NewParticipant(name, wallet, game.ControllerHuman)
	c.Enqueue(p, modeID)
	return p
}

// Enqueue places an existing participant in the pool for the requested mode
// and starts a match immediately if the pool reaches the required count. An
// unknown mode id falls back to the default mode rather than failing the
// join. Separate from Join so the transport can register the participant's
// connection before any pool or match event is broadcast.
func (c *Coordinator) Enqueue(p *game.Participant, modeID string) {
	c.mu.Lock()
	pl, ok := c.pools[modeID]
	if !ok {
		pl = c.pools[c.cfg.DefaultMode]
		log.Printf("⚠️ Unknown mode %q, falling back to %q", modeID, c.cfg.DefaultMode)
	}

	pl.members = append(pl.members, pending{p: p, joinedAt: time.Now()})
	c.inLobby[p.ID] = pl.mode.ID
	c.broadcastPoolLocked(pl)
	c.audit.Emit(game.AuditEvent{Type: game.AuditJoin, ParticipantID: p.ID, Detail: map[string]any{
		"name": p.Name, "mode": pl.mode.ID,
	}})
	log.Printf("👤 %s joined %s lobby (%d/%d)", p.Name, pl.mode.Name, len(pl.members), pl.mode.Players)

	if len(pl.members) >= pl.mode.Players {
		c.startMatchLocked(pl)
	}
	c.mu.Unlock()
}

// HandleInput forwards a validated directional command to the participant's
// match, if any.
func (c *Coordinator) HandleInput(participantID string, d game.Dir) bool {
	c.mu.Lock()
	m := c.matches[c.inMatch[participantID]]
	c.mu.Unlock()
	if m == nil {
		return false
	}
	return m.ApplyInput(participantID, d)
}

// Disconnect removes a participant wherever it currently is: lobby removal
// broadcasts the new pool size, in-match removal is a forced elimination.
func (c *Coordinator) Disconnect(participantID string) {
	c.mu.Lock()
	if modeID, ok := c.inLobby[participantID]; ok {
		pl := c.pools[modeID]
		for i, m := range pl.members {
			if m.p.ID == participantID {
				pl.members = append(pl.members[:i], pl.members[i+1:]...)
				break
			}
		}
		delete(c.inLobby, participantID)
		c.broadcastPoolLocked(pl)
		c.mu.Unlock()
		log.Printf("👋 Participant %s left %s lobby", participantID, modeID)
		return
	}
	m := c.matches[c.inMatch[participantID]]
	c.mu.Unlock()

	if m != nil {
		// Same path as a collision: freeze in place, trail stays lethal.
		m.EliminateParticipant(participantID)
	}
}

// sweep inspects every non-full, non-empty pool and backfills with bots once
// the oldest member has waited past the timeout.
func (c *Coordinator) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.BotBackfill {
		return
	}
	for _, pl := range c.pools {
		if len(pl.members) == 0 || len(pl.members) >= pl.mode.Players {
			continue
		}
		if now.Sub(pl.members[0].joinedAt) < c.cfg.WaitTimeout {
			continue
		}
		need := pl.mode.Players - len(pl.members)
		for i := 0; i < need; i++ {
			bot := game.NewParticipant(c.nextBotNameLocked(), "", game.ControllerBot)
			pl.members = append(pl.members, pending{p: bot, joinedAt: now})
			metrics.BotBackfilled()
		}
		log.Printf("🤖 Backfilled %s lobby with %d bots", pl.mode.Name, need)
		c.startMatchLocked(pl)
	}
}

// startMatchLocked carves exactly the required count off the front of the
// pool (oldest first) and hands them to a new match instance.
func (c *Coordinator) startMatchLocked(pl *pool) {
	n := pl.mode.Players
	if len(pl.members) < n {
		return
	}
	players := make([]*game.Participant, 0, n)
	for _, m := range pl.members[:n] {
		players = append(players, m.p)
		delete(c.inLobby, m.p.ID)
	}
	pl.members = append(pl.members[:0], pl.members[n:]...)
	c.broadcastPoolLocked(pl)

	match := game.NewMatch(pl.mode, players, c.matchCfg, c.sink, c.settler)
	match.SetAuditLog(c.audit)
	match.SetOnFinish(c.releaseMatch)
	c.matches[match.ID] = match
	for _, p := range players {
		c.inMatch[p.ID] = match.ID
	}
	c.started++

	match.Start()
}

// releaseMatch disposes a finished match instance.
func (c *Coordinator) releaseMatch(m *game.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range m.ParticipantIDs() {
		if c.inMatch[id] == m.ID {
			delete(c.inMatch, id)
		}
	}
	delete(c.matches, m.ID)
}

// broadcastPoolLocked sends the pool size to current members only; a player
// waiting for a duel never sees arena pool events.
func (c *Coordinator) broadcastPoolLocked(pl *pool) {
	metrics.UpdateLobbyWaiting(pl.mode.ID, len(pl.members))
	if len(pl.members) == 0 {
		return
	}
	c.sink.Send(pl.ids(), game.EventLobbySize, game.LobbySizePayload{
		Mode:     pl.mode.ID,
		Current:  len(pl.members),
		Required: pl.mode.Players,
	})
}

var botNames = []string{"VEX", "NYX", "ZED", "KIRA", "ONYX", "RUNE", "JOLT", "ECHO", "VOLT", "HEX"}

func (c *Coordinator) nextBotNameLocked() string {
	name := fmt.Sprintf("%s-%02d", botNames[c.botCount%len(botNames)], c.botCount/len(botNames)+1)
	c.botCount++
	return name
}

// Stats returns coordinator counters for the ops endpoint.
func (c *Coordinator) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiting := make(map[string]int, len(c.pools))
	for id, pl := range c.pools {
		waiting[id] = len(pl.members)
	}
	return map[string]any{
		"activeMatches":  len(c.matches),
		"matchesStarted": c.started,
		"waiting":        waiting,
	}
}
