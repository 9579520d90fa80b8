package game

// Outbound event names. Lobby-scope events go only to current pool members;
// match-scope events go only to that match's participants.
const (
	EventLobbySize    = "lobby:size"
	EventMatchStart   = "match:start"
	EventMatchState   = "match:state"
	EventSpeedChanged = "match:speed"
	EventPhaseChanged = "match:phase"
	EventNearMiss     = "match:near_miss"
	EventEliminated   = "match:eliminated"
	EventMatchEnd     = "match:end"
)

// Sink delivers an event payload to a set of participants. The transport
// layer implements it; ids without a live connection (bots, disconnected
// players) are silently skipped.
type Sink interface {
	Send(participantIDs []string, event string, data any)
}

// NopSink discards everything. Used by tests and headless simulations.
type NopSink struct{}

func (NopSink) Send([]string, string, any) {}

// Settler receives the final rankings of a finished match. Crediting the
// prize shares is the settlement collaborator's problem, not the core's.
type Settler interface {
	Settle(result MatchEndPayload)
}

// LobbySizePayload is broadcast to a waiting pool on every membership change.
type LobbySizePayload struct {
	Mode     string `json:"mode"`
	Current  int    `json:"current"`
	Required int    `json:"required"`
}

// ParticipantSnapshot is the per-participant slice of a state snapshot.
type ParticipantSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pos     Cell   `json:"pos"`
	Heading Dir    `json:"heading"`
	Alive   bool   `json:"alive"`
	Bot     bool   `json:"bot"`
	Kills   int    `json:"kills"`
	Trail   []Cell `json:"trail"`
}

// MatchStartPayload announces a new match to its participants. Mode is the
// mode id, as in every other payload; ModeName is the display name.
type MatchStartPayload struct {
	MatchID        string                `json:"matchId"`
	Mode           string                `json:"mode"`
	ModeName       string                `json:"modeName"`
	GridSize       int                   `json:"gridSize"`
	Prize          float64               `json:"prize"`
	TickIntervalMs int                   `json:"tickIntervalMs"`
	Participants   []ParticipantSnapshot `json:"participants"`
}

// StatePayload is the periodic authoritative snapshot. ServerTime lets the
// client smooth between snapshots.
type StatePayload struct {
	MatchID        string                `json:"matchId"`
	ServerTime     int64                 `json:"serverTime"`
	TickIntervalMs int                   `json:"tickIntervalMs"`
	ArenaEdge      float64               `json:"arenaEdge"`
	Speed          float64               `json:"speed"`
	Phase          string                `json:"phase"`
	Participants   []ParticipantSnapshot `json:"participants"`
}

// SpeedChangedPayload fires once per speed increment.
type SpeedChangedPayload struct {
	Multiplier float64 `json:"multiplier"`
}

// PhaseChangedPayload fires once per shrink phase transition.
type PhaseChangedPayload struct {
	Phase string `json:"phase"`
}

// NearMissPayload signals a head passing close to another living head.
type NearMissPayload struct {
	ParticipantID string `json:"participantId"`
}

// EliminatedPayload announces a participant freeze.
type EliminatedPayload struct {
	ParticipantID   string  `json:"participantId"`
	Name            string  `json:"name"`
	SurvivalSeconds float64 `json:"survivalSeconds"`
}

// RankingEntry is one row of the final standings.
type RankingEntry struct {
	Rank            int     `json:"rank"`
	ParticipantID   string  `json:"participantId"`
	Name            string  `json:"name"`
	Wallet          string  `json:"wallet"`
	Kills           int     `json:"kills"`
	SurvivalSeconds float64 `json:"survivalSeconds"`
	Prize           float64 `json:"prize"`
}

// MatchEndPayload is both the terminal broadcast and the settlement payload.
type MatchEndPayload struct {
	MatchID  string         `json:"matchId"`
	Mode     string         `json:"mode"`
	Prize    float64        `json:"prize"`
	Rankings []RankingEntry `json:"rankings"`
}
