package game

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"qron/internal/metrics"
)

// MatchState is the match lifecycle.
type MatchState int

const (
	MatchPending MatchState = iota
	MatchActive
	MatchFinished
)

// ShrinkPhase is a coarse banding of the arena-size ratio, used purely for
// client-facing tension cues.
type ShrinkPhase int

const (
	PhaseStable ShrinkPhase = iota
	PhaseWarning
	PhaseDanger
	PhasePanic
)

func (s ShrinkPhase) String() string {
	switch s {
	case PhaseStable:
		return "stable"
	case PhaseWarning:
		return "warning"
	case PhaseDanger:
		return "danger"
	case PhasePanic:
		return "panic"
	}
	return "unknown"
}

func phaseFor(ratio float64) ShrinkPhase {
	switch {
	case ratio > 0.70:
		return PhaseStable
	case ratio > 0.50:
		return PhaseWarning
	case ratio > 0.35:
		return PhaseDanger
	default:
		return PhasePanic
	}
}

// MatchConfig is the simulation tuning shared by all matches.
type MatchConfig struct {
	TickRate          int           // simulation steps per second
	BroadcastInterval time.Duration // snapshot cadence, decoupled from ticks
	SpeedRampInterval time.Duration // wall-clock time between speed increments
	SpeedIncrement    float64
	MaxSpeed          float64 // hard ceiling for the speed multiplier
	NearMissRadius    int     // Manhattan distance for near-miss signals
	BotCadence        int     // bots decide every N ticks, staggered by id
}

// DefaultMatchConfig returns the standard tuning.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TickRate:          20,
		BroadcastInterval: 25 * time.Millisecond,
		SpeedRampInterval: 5 * time.Second,
		SpeedIncrement:    0.15,
		MaxSpeed:          2.5,
		NearMissRadius:    2,
		BotCadence:        4,
	}
}

// outEvent is a broadcast deferred until the match lock is released.
type outEvent struct {
	event string
	data  any
}

// Match owns one game instance from spawn to termination: movement,
// collision, shrink, speed ramp, win detection and prize computation. All
// mutable state is guarded by mu; the tick loop, bot decisions and input
// application never overlap on it.
type Match struct {
	ID   string
	Mode Mode

	mu           sync.Mutex
	cfg          MatchConfig
	participants map[string]*Participant
	order        []*Participant // join order, stable for ranking ties
	occupied     map[Cell]string
	arenaEdge    float64
	speed        float64
	phase        ShrinkPhase
	state        MatchState
	tickCount    uint64
	ticksPerRamp uint64

	sink     Sink
	settler  Settler
	audit    *EventLog
	onFinish func(*Match)

	ids      []string // cached participant id list for broadcasts
	ticker   *time.Ticker
	bcast    *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMatch lays out participants evenly around a spawn circle and seeds each
// trail with its spawn cell. The match does not tick until Start.
func NewMatch(mode Mode, players []*Participant, cfg MatchConfig, sink Sink, settler Settler) *Match {
	m := &Match{
		ID:           uuid.NewString(),
		Mode:         mode,
		cfg:          cfg,
		participants: make(map[string]*Participant, len(players)),
		order:        make([]*Participant, 0, len(players)),
		occupied:     make(map[Cell]string, len(players)*64),
		arenaEdge:    float64(mode.GridSize),
		speed:        1.0,
		phase:        PhaseStable,
		state:        MatchPending,
		sink:         sink,
		settler:      settler,
		stopChan:     make(chan struct{}),
	}
	if m.cfg.TickRate <= 0 {
		m.cfg.TickRate = DefaultMatchConfig().TickRate
	}
	m.ticksPerRamp = uint64(m.cfg.SpeedRampInterval.Seconds() * float64(m.cfg.TickRate))

	center := Cell{mode.GridSize / 2, mode.GridSize / 2}
	radius := 0.35 * float64(mode.GridSize)
	for i, p := range players {
		angle := 2 * math.Pi * float64(i) / float64(len(players))
		at := Cell{
			X: center.X + int(math.Round(radius*math.Cos(angle))),
			Y: center.Y + int(math.Round(radius*math.Sin(angle))),
		}
		p.spawn(at, headingToward(at, center))
		m.participants[p.ID] = p
		m.order = append(m.order, p)
		m.occupied[at] = p.ID
		m.ids = append(m.ids, p.ID)
	}
	return m
}

// headingToward picks the cardinal direction along the axis of larger
// displacement from at to target.
func headingToward(at, target Cell) Dir {
	dx, dy := target.X-at.X, target.Y-at.Y
	if dx == 0 && dy == 0 {
		return DirUp
	}
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			return DirRight
		}
		return DirLeft
	}
	if dy > 0 {
		return DirDown
	}
	return DirUp
}

// SetOnFinish registers a callback invoked once after the match has emitted
// its final rankings. Must be called before Start.
func (m *Match) SetOnFinish(fn func(*Match)) {
	m.onFinish = fn
}

// SetAuditLog attaches the lifecycle audit log. Must be called before Start.
func (m *Match) SetAuditLog(el *EventLog) {
	m.audit = el
}

// Start announces the match and launches its tick loop.
func (m *Match) Start() {
	m.mu.Lock()
	if m.state != MatchPending {
		m.mu.Unlock()
		return
	}
	m.state = MatchActive
	payload := MatchStartPayload{
		MatchID:        m.ID,
		Mode:           m.Mode.ID,
		ModeName:       m.Mode.Name,
		GridSize:       m.Mode.GridSize,
		Prize:          m.Mode.Prize,
		TickIntervalMs: 1000 / m.cfg.TickRate,
		Participants:   m.snapshotLocked(),
	}
	m.mu.Unlock()

	m.sink.Send(m.ids, EventMatchStart, payload)
	m.audit.Emit(AuditEvent{Type: AuditMatchStart, MatchID: m.ID, Detail: map[string]any{
		"mode": m.Mode.ID, "players": len(m.ids),
	}})
	metrics.MatchStarted(m.Mode.ID)
	log.Printf("🎮 Match %s started: %s, %d players, grid %d", m.ID, m.Mode.Name, len(m.ids), m.Mode.GridSize)

	m.ticker = time.NewTicker(time.Second / time.Duration(m.cfg.TickRate))
	m.bcast = time.NewTicker(m.cfg.BroadcastInterval)
	go m.run()
}

func (m *Match) run() {
	for {
		select {
		case <-m.ticker.C:
			m.tick()
		case <-m.bcast.C:
			m.broadcastState()
		case <-m.stopChan:
			return
		}
	}
}

// Stop clears the match timers. Safe to call more than once.
func (m *Match) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		if m.ticker != nil {
			m.ticker.Stop()
		}
		if m.bcast != nil {
			m.bcast.Stop()
		}
	})
}

// State returns the lifecycle state.
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AliveCount returns the number of living participants.
func (m *Match) AliveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aliveLocked()
}

// ParticipantIDs returns the ids of all participants in join order.
func (m *Match) ParticipantIDs() []string {
	return append([]string(nil), m.ids...)
}

// ApplyInput buffers a directional command for a living human participant.
// The newest valid command overwrites any pending one; it is consumed at the
// next full-cell step. Returns whether the command was accepted.
func (m *Match) ApplyInput(participantID string, d Dir) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MatchActive {
		return false
	}
	p, ok := m.participants[participantID]
	if !ok || p.IsBot() {
		return false
	}
	return p.setDesiredHeading(d)
}

// EliminateParticipant force-eliminates a participant, e.g. on disconnect.
// Identical to a collision elimination: the participant freezes in place and
// its trail stays lethal.
func (m *Match) EliminateParticipant(participantID string) {
	m.mu.Lock()
	var emits []outEvent
	var end *MatchEndPayload
	if m.state == MatchActive {
		if p, ok := m.participants[participantID]; ok && p.Alive() {
			m.eliminateLocked(p, &emits)
			if m.aliveLocked() <= m.Mode.WinThreshold() {
				end = m.finishLocked(&emits)
			}
		}
	}
	m.mu.Unlock()
	m.flush(emits, end)
}

// tick advances the simulation by one fixed step.
func (m *Match) tick() {
	start := time.Now()

	m.mu.Lock()
	if m.state != MatchActive {
		m.mu.Unlock()
		return
	}
	m.tickCount++
	var emits []outEvent
	var end *MatchEndPayload

	// Speed ramp: one increment per interval, broadcast once, hard ceiling.
	// Snap to the ceiling when the remainder is below half an increment, so
	// float drift never produces a phantom near-zero extra increment.
	if m.ticksPerRamp > 0 && m.tickCount%m.ticksPerRamp == 0 && m.speed < m.cfg.MaxSpeed {
		m.speed = math.Min(m.speed+m.cfg.SpeedIncrement, m.cfg.MaxSpeed)
		if m.cfg.MaxSpeed-m.speed < m.cfg.SpeedIncrement/2 {
			m.speed = m.cfg.MaxSpeed
		}
		emits = append(emits, outEvent{EventSpeedChanged, SpeedChangedPayload{Multiplier: m.speed}})
	}

	// Bot decisions run at a reduced, id-staggered cadence to bound CPU.
	if m.cfg.BotCadence > 0 {
		for _, p := range m.order {
			if p.Alive() && p.IsBot() && (m.tickCount+p.stagger)%uint64(m.cfg.BotCadence) == 0 {
				m.decideBot(p)
			}
		}
	}

	// Movement: accumulate fractional cells, consume whole steps.
	for _, p := range m.order {
		if !p.Alive() {
			continue
		}
		p.SurvivalTicks++
		p.stepAcc += m.speed
		for p.stepAcc >= 1 && p.Alive() {
			p.stepAcc--
			m.step(p, &emits)
		}
	}

	// Arena shrink, clamped to the quarter-grid floor.
	if floor := m.Mode.MinArenaEdge(); m.arenaEdge > floor {
		m.arenaEdge = math.Max(m.arenaEdge-m.Mode.ShrinkRate, floor)
	}
	if ph := phaseFor(m.arenaEdge / float64(m.Mode.GridSize)); ph != m.phase {
		m.phase = ph
		emits = append(emits, outEvent{EventPhaseChanged, PhaseChangedPayload{Phase: ph.String()}})
	}

	if m.aliveLocked() <= m.Mode.WinThreshold() {
		end = m.finishLocked(&emits)
	}
	m.mu.Unlock()

	m.flush(emits, end)
	metrics.ObserveTick(time.Since(start))
}

// step consumes one full grid cell of movement for p.
func (m *Match) step(p *Participant, emits *[]outEvent) {
	p.consumePendingHeading()
	next := p.Pos.Step(p.Heading)

	if !m.inArenaLocked(next) {
		m.eliminateLocked(p, emits)
		return
	}
	if owner, taken := m.occupied[next]; taken {
		// Running into someone else's trail credits the trail owner.
		if owner != p.ID {
			if o := m.participants[owner]; o != nil {
				o.Kills++
			}
		}
		m.eliminateLocked(p, emits)
		return
	}

	for _, o := range m.order {
		if o != p && o.Alive() && o.Pos.Manhattan(next) <= m.cfg.NearMissRadius {
			*emits = append(*emits, outEvent{EventNearMiss, NearMissPayload{ParticipantID: p.ID}})
			break
		}
	}

	p.advance(next)
	m.occupied[next] = p.ID
}

func (m *Match) eliminateLocked(p *Participant, emits *[]outEvent) {
	p.eliminate()
	secs := float64(p.SurvivalTicks) / float64(m.cfg.TickRate)
	*emits = append(*emits, outEvent{EventEliminated, EliminatedPayload{
		ParticipantID:   p.ID,
		Name:            p.Name,
		SurvivalSeconds: secs,
	}})
	m.audit.Emit(AuditEvent{Type: AuditEliminated, MatchID: m.ID, ParticipantID: p.ID, Detail: map[string]any{
		"survivalTicks": p.SurvivalTicks,
	}})
	metrics.ParticipantEliminated()
	log.Printf("💀 %s eliminated after %.1fs (match %s)", p.Name, secs, m.ID)
}

// finishLocked ranks all participants, computes prize shares and builds the
// terminal payload. Alive participants rank first, then eliminated ones by
// descending survival ticks; same-tick eliminations keep join order.
func (m *Match) finishLocked(emits *[]outEvent) *MatchEndPayload {
	m.state = MatchFinished

	ranked := append([]*Participant(nil), m.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := ranked[i].Alive(), ranked[j].Alive()
		if ai != aj {
			return ai
		}
		if !ai {
			return ranked[i].SurvivalTicks > ranked[j].SurvivalTicks
		}
		return false
	})

	end := &MatchEndPayload{
		MatchID:  m.ID,
		Mode:     m.Mode.ID,
		Prize:    m.Mode.Prize,
		Rankings: make([]RankingEntry, 0, len(ranked)),
	}
	for i, p := range ranked {
		rank := i + 1
		end.Rankings = append(end.Rankings, RankingEntry{
			Rank:            rank,
			ParticipantID:   p.ID,
			Name:            p.Name,
			Wallet:          p.Wallet,
			Kills:           p.Kills,
			SurvivalSeconds: float64(p.SurvivalTicks) / float64(m.cfg.TickRate),
			Prize:           m.Mode.PrizeForRank(rank),
		})
	}
	*emits = append(*emits, outEvent{EventMatchEnd, *end})

	if len(end.Rankings) > 0 {
		log.Printf("🏁 Match %s finished: winner %s (prize %.2f)", m.ID, end.Rankings[0].Name, end.Rankings[0].Prize)
	}
	return end
}

// flush delivers deferred broadcasts and, on termination, hands the final
// rankings to the settlement collaborator. Runs without the match lock.
func (m *Match) flush(emits []outEvent, end *MatchEndPayload) {
	for _, e := range emits {
		m.sink.Send(m.ids, e.event, e.data)
	}
	if end == nil {
		return
	}
	m.Stop()
	m.audit.Emit(AuditEvent{Type: AuditMatchEnd, MatchID: m.ID, Detail: map[string]any{
		"rankings": end.Rankings,
	}})
	metrics.MatchFinished(m.Mode.ID)
	if m.settler != nil {
		m.settler.Settle(*end)
	}
	if m.onFinish != nil {
		m.onFinish(m)
	}
}

// broadcastState emits the periodic authoritative snapshot.
func (m *Match) broadcastState() {
	m.mu.Lock()
	if m.state != MatchActive {
		m.mu.Unlock()
		return
	}
	payload := StatePayload{
		MatchID:        m.ID,
		ServerTime:     time.Now().UnixMilli(),
		TickIntervalMs: 1000 / m.cfg.TickRate,
		ArenaEdge:      m.arenaEdge,
		Speed:          m.speed,
		Phase:          m.phase.String(),
		Participants:   m.snapshotLocked(),
	}
	m.mu.Unlock()

	m.sink.Send(m.ids, EventMatchState, payload)
}

// snapshotLocked copies participant state, including trails, so the payload
// can be marshaled after the lock is released.
func (m *Match) snapshotLocked() []ParticipantSnapshot {
	snaps := make([]ParticipantSnapshot, 0, len(m.order))
	for _, p := range m.order {
		snaps = append(snaps, ParticipantSnapshot{
			ID:      p.ID,
			Name:    p.Name,
			Pos:     p.Pos,
			Heading: p.Heading,
			Alive:   p.Alive(),
			Bot:     p.IsBot(),
			Kills:   p.Kills,
			Trail:   append([]Cell(nil), p.Trail...),
		})
	}
	return snaps
}

func (m *Match) aliveLocked() int {
	n := 0
	for _, p := range m.order {
		if p.Alive() {
			n++
		}
	}
	return n
}

// inArenaLocked reports whether c lies inside the current symmetric inset.
func (m *Match) inArenaLocked(c Cell) bool {
	grid := float64(m.Mode.GridSize)
	inset := (grid - m.arenaEdge) / 2
	fx, fy := float64(c.X), float64(c.Y)
	return fx >= inset && fx <= grid-1-inset && fy >= inset && fy <= grid-1-inset
}

// insetDistance returns how many whole cells c sits away from the nearest
// edge of the current playable inset. Negative when outside.
func (m *Match) insetDistance(c Cell) int {
	grid := float64(m.Mode.GridSize)
	inset := (grid - m.arenaEdge) / 2
	d := math.Min(
		math.Min(float64(c.X)-inset, grid-1-inset-float64(c.X)),
		math.Min(float64(c.Y)-inset, grid-1-inset-float64(c.Y)),
	)
	return int(math.Floor(d))
}

// collides reports whether a cell would eliminate whoever enters it.
func (m *Match) collides(c Cell) bool {
	if !m.inArenaLocked(c) {
		return true
	}
	_, taken := m.occupied[c]
	return taken
}
