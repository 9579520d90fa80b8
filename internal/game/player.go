package game

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// Controller says who supplies a participant's next heading. Humans and bots
// share every simulation-relevant field; this tag is the only difference.
type Controller int

const (
	ControllerHuman Controller = iota
	ControllerBot
)

// ParticipantState is the participant lifecycle. Eliminated participants are
// frozen: no position or trail mutation, but they stay in the match map and
// their trail cells remain lethal.
type ParticipantState int

const (
	StateActive ParticipantState = iota
	StateEliminated
)

// Participant is the mutable per-player state inside a single match. It is
// owned exclusively by one Match for its whole lifetime and is only ever
// touched under that match's lock.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Wallet string `json:"wallet"`

	Pos     Cell `json:"pos"`
	Heading Dir  `json:"heading"`

	// Trail is append-only and always contains the spawn cell. It grows
	// unbounded for the match duration; insertion order is preserved for
	// playback even though collision testing treats it as a set.
	Trail []Cell `json:"trail"`

	Kills         int `json:"kills"`
	SurvivalTicks int `json:"survivalTicks"`

	Controller Controller       `json:"-"`
	State      ParticipantState `json:"-"`

	// pending is the latest valid directional command, overwritten by newer
	// ones (last write wins) and consumed at the next full-cell step.
	pending    Dir
	hasPending bool

	// stepAcc accumulates fractional cells of movement per tick.
	stepAcc float64

	// stagger offsets this bot's decision ticks so bots don't all recompute
	// on the same tick.
	stagger uint64
}

// NewParticipant creates a participant that is not yet placed on a grid.
func NewParticipant(name, wallet string, ctrl Controller) *Participant {
	id := uuid.NewString()
	h := fnv.New64a()
	h.Write([]byte(id))
	return &Participant{
		ID:         id,
		Name:       name,
		Wallet:     wallet,
		Controller: ctrl,
		stagger:    h.Sum64(),
	}
}

// Alive reports whether the participant can still move.
func (p *Participant) Alive() bool {
	return p.State == StateActive
}

// IsBot reports whether the participant is machine controlled.
func (p *Participant) IsBot() bool {
	return p.Controller == ControllerBot
}

// spawn places the participant and seeds its trail with the spawn cell.
func (p *Participant) spawn(at Cell, heading Dir) {
	p.Pos = at
	p.Heading = heading
	p.Trail = append(p.Trail[:0], at)
}

// setDesiredHeading buffers a directional command. Only perpendicular
// directions are accepted: that rejects both 180° reversals and redundant
// same-axis commands. Returns whether the command was accepted.
func (p *Participant) setDesiredHeading(d Dir) bool {
	if !p.Alive() {
		return false
	}
	if !p.Heading.Perpendicular(d) {
		return false
	}
	p.pending = d
	p.hasPending = true
	return true
}

// consumePendingHeading applies the buffered command at a full-cell step
// boundary, re-validating against the heading current at that moment.
func (p *Participant) consumePendingHeading() {
	if !p.hasPending {
		return
	}
	p.hasPending = false
	if p.Heading.Perpendicular(p.pending) {
		p.Heading = p.pending
	}
}

// advance moves the participant into the next cell and appends it to the
// trail. Moving an eliminated participant is an internal logic error.
func (p *Participant) advance(to Cell) {
	if !p.Alive() {
		panic("game: advance on eliminated participant " + p.ID)
	}
	p.Pos = to
	p.Trail = append(p.Trail, to)
}

// eliminate freezes the participant in place. The trail stays as it is: its
// cells remain lethal obstacles for everyone else.
func (p *Participant) eliminate() {
	p.State = StateEliminated
	p.hasPending = false
	p.stepAcc = 0
}
