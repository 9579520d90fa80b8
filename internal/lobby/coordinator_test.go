package lobby

import (
	"sync"
	"testing"
	"time"

	"qron/internal/game"
)

type recordSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	ids   []string
	event string
	data  any
}

func (s *recordSink) Send(ids []string, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{ids: append([]string(nil), ids...), event: event, data: data})
}

func (s *recordSink) byEvent(event string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type recordSettler struct {
	mu      sync.Mutex
	results []game.MatchEndPayload
}

func (s *recordSettler) Settle(result game.MatchEndPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

// newTestCoordinator uses a 1 TPS tick so matches started during a test stay
// effectively frozen while assertions run.
func newTestCoordinator(cfg Config) (*Coordinator, *recordSink, *recordSettler) {
	sink := &recordSink{}
	settler := &recordSettler{}
	matchCfg := game.DefaultMatchConfig()
	matchCfg.TickRate = 1
	matchCfg.BroadcastInterval = time.Second
	c := NewCoordinator(game.DefaultModes(), cfg, matchCfg, sink, settler)
	return c, sink, settler
}

func waiting(t *testing.T, c *Coordinator, mode string) int {
	t.Helper()
	return c.Stats()["waiting"].(map[string]int)[mode]
}

func activeMatches(t *testing.T, c *Coordinator) int {
	t.Helper()
	return c.Stats()["activeMatches"].(int)
}

func TestJoinStartsMatchAtThreshold(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	a := c.Join("alice", "0xa", "duel")
	if waiting(t, c, "duel") != 1 {
		t.Fatal("first join should wait")
	}
	if activeMatches(t, c) != 0 {
		t.Fatal("no match should start below the threshold")
	}

	b := c.Join("bob", "0xb", "duel")
	if activeMatches(t, c) != 1 {
		t.Fatal("second join should start a duel")
	}
	if waiting(t, c, "duel") != 0 {
		t.Fatal("pool should be drained into the match")
	}
	if a.ID == b.ID {
		t.Fatal("participants must have distinct ids")
	}
}

func TestUnknownModeFallsBackToDefault(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	c.Join("alice", "0xa", "warp-speed")
	if waiting(t, c, "duel") != 1 {
		t.Fatal("unknown mode should land in the default pool")
	}
}

func TestSweepBackfillsAfterTimeout(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	c.Join("alice", "0xa", "squad")

	// Before the timeout the pool is left alone.
	c.sweep(time.Now())
	if waiting(t, c, "squad") != 1 || activeMatches(t, c) != 0 {
		t.Fatal("sweep backfilled before the wait timeout")
	}

	c.sweep(time.Now().Add(DefaultConfig().WaitTimeout + time.Second))
	if activeMatches(t, c) != 1 {
		t.Fatal("sweep should backfill bots and start the match")
	}
	if waiting(t, c, "squad") != 0 {
		t.Fatal("pool should be drained after backfill")
	}
}

func TestBackfillDisabledWaitsIndefinitely(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BotBackfill = false
	c, _, _ := newTestCoordinator(cfg)
	defer c.Stop()

	c.Join("alice", "0xa", "squad")
	c.sweep(time.Now().Add(time.Hour))

	if activeMatches(t, c) != 0 {
		t.Fatal("backfill-disabled pool started a match")
	}
	if waiting(t, c, "squad") != 1 {
		t.Fatal("participant should still be waiting")
	}
}

func TestEmptyPoolsAreNeverBackfilled(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	c.sweep(time.Now().Add(time.Hour))
	if activeMatches(t, c) != 0 {
		t.Fatal("sweep started a match from an empty pool")
	}
}

func TestPoolBroadcastsScopedToMembers(t *testing.T) {
	c, sink, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	a := c.Join("alice", "0xa", "duel")
	b := c.Join("bob", "0xb", "squad")

	for _, e := range sink.byEvent(game.EventLobbySize) {
		payload := e.data.(game.LobbySizePayload)
		for _, id := range e.ids {
			if payload.Mode == "duel" && id == b.ID {
				t.Error("squad member received a duel pool event")
			}
			if payload.Mode == "squad" && id == a.ID {
				t.Error("duel member received a squad pool event")
			}
		}
	}
}

func TestDisconnectFromLobby(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	a := c.Join("alice", "0xa", "squad")
	c.Disconnect(a.ID)

	if waiting(t, c, "squad") != 0 {
		t.Fatal("disconnect should remove the participant from its pool")
	}
	// Pool is open again: a later join waits instead of inheriting stale state.
	c.Join("bob", "0xb", "squad")
	if waiting(t, c, "squad") != 1 {
		t.Fatal("pool state is stale after a lobby disconnect")
	}
}

func TestDisconnectFromMatchForcesElimination(t *testing.T) {
	c, _, settler := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	a := c.Join("alice", "0xa", "duel")
	b := c.Join("bob", "0xb", "duel")
	if activeMatches(t, c) != 1 {
		t.Fatal("setup: duel should be running")
	}

	c.Disconnect(a.ID)

	settler.mu.Lock()
	defer settler.mu.Unlock()
	if len(settler.results) != 1 {
		t.Fatal("disconnect of one duelist should settle the match")
	}
	end := settler.results[0]
	if end.Rankings[0].ParticipantID != b.ID {
		t.Error("remaining duelist should win")
	}
	if end.Rankings[1].ParticipantID != a.ID {
		t.Error("disconnected duelist should be ranked last")
	}
	if activeMatches(t, c) != 0 {
		t.Error("settled match should be released")
	}
}

func TestHandleInputRoutesToMatch(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	defer c.Stop()

	a := c.Join("alice", "0xa", "duel")

	perp := game.DirUp
	if c.HandleInput(a.ID, perp) {
		t.Fatal("input for a lobby participant should be dropped")
	}

	c.Join("bob", "0xb", "duel")
	if a.Heading.DY != 0 {
		perp = game.DirLeft
	}
	if !c.HandleInput(a.ID, perp) {
		t.Fatal("perpendicular input for an in-match participant should apply")
	}
	if c.HandleInput("nobody", perp) {
		t.Fatal("input for an unknown participant should be dropped")
	}
}

func TestBotNamesAreDistinct(t *testing.T) {
	c, _, _ := newTestCoordinator(DefaultConfig())
	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		name := c.nextBotNameLocked()
		if seen[name] {
			t.Fatalf("duplicate bot name %q", name)
		}
		seen[name] = true
	}
}
