package game

// Mode is an immutable game mode descriptor. The catalog is fixed at startup
// and shared by reference between lobbies and matches; nothing mutates it.
type Mode struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Players  int     `json:"players"`
	GridSize int     `json:"gridSize"`
	EntryFee float64 `json:"entryFee"`
	Prize    float64 `json:"prize"`

	// ShrinkRate is the arena edge reduction per tick, in cells.
	// Larger grids shrink faster in absolute terms so match length stays
	// comparable across modes.
	ShrinkRate float64 `json:"-"`

	// Payouts is the fraction of the prize pool per rank, best rank first.
	// Ranks past the end of the curve receive exactly zero.
	Payouts []float64 `json:"-"`
}

// Payout curves per mode size. Top-3 modes use the same curve.
var (
	payoutWinnerTakesAll = []float64{1.0}
	payoutTopTwo         = []float64{0.75, 0.25}
	payoutTopThree       = []float64{0.694, 0.208, 0.098}
)

// DefaultModes returns the standard mode catalog.
func DefaultModes() []Mode {
	return []Mode{
		{ID: "duel", Name: "Duel", Players: 2, GridSize: 36, EntryFee: 0.50, Prize: 0.90, ShrinkRate: 0.011, Payouts: payoutWinnerTakesAll},
		{ID: "squad", Name: "Squad", Players: 4, GridSize: 52, EntryFee: 0.50, Prize: 1.80, ShrinkRate: 0.016, Payouts: payoutTopTwo},
		{ID: "ranked", Name: "Ranked", Players: 8, GridSize: 84, EntryFee: 1.00, Prize: 5.60, ShrinkRate: 0.026, Payouts: payoutTopThree},
		{ID: "arena", Name: "Arena", Players: 10, GridSize: 112, EntryFee: 1.00, Prize: 7.00, ShrinkRate: 0.034, Payouts: payoutTopThree},
	}
}

// WinThreshold is the number of living participants at which the match ends:
// a single survivor for small modes, the paid top three for large ones.
func (m Mode) WinThreshold() int {
	if m.Players <= 4 {
		return 1
	}
	return 3
}

// PrizeForRank returns the prize share for a 1-based rank.
func (m Mode) PrizeForRank(rank int) float64 {
	idx := rank - 1
	if idx < 0 || idx >= len(m.Payouts) {
		return 0
	}
	return m.Prize * m.Payouts[idx]
}

// MinArenaEdge is the shrink floor: the arena never drops below a quarter of
// the grid edge.
func (m Mode) MinArenaEdge() float64 {
	return float64(m.GridSize) * 0.25
}
