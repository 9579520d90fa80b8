package game

// Bot heuristic tuning. The immediate-collision penalty dominates every other
// term so a bot never steers into a known death when an open candidate exists.
const (
	botLookahead     = 5 // cells projected along a candidate heading
	botOpenRadius    = 2 // Manhattan radius of the open-space neighborhood
	botBaseScore     = 100.0
	botDeathPenalty  = 1000.0
	botLookaheadUnit = 30.0  // per cell of closeness of the nearest collision
	botCenterWeight  = 0.5   // per cell of Manhattan distance from center
	botWallPenalty   = 120.0 // divided by distance to the shrinking inset
	botOpenCellBonus = 4.0
)

// decideBot picks the best-scoring non-reversing heading for a bot. If no
// candidate scores positive the bot keeps its heading and accepts its fate.
// Ties break on candidate order, which is fixed, so decisions are
// deterministic for a given board.
func (m *Match) decideBot(p *Participant) {
	best := p.Heading
	bestScore := 0.0
	first := true

	for _, d := range Dirs {
		if d == p.Heading.Reverse() {
			continue
		}
		score := m.scoreHeading(p, d)
		if first || score > bestScore {
			best = d
			bestScore = score
			first = false
		}
	}

	if bestScore > 0 {
		p.Heading = best
	}
}

// scoreHeading rates one candidate direction for p.
func (m *Match) scoreHeading(p *Participant, d Dir) float64 {
	next := p.Pos.Step(d)
	if m.collides(next) {
		return -botDeathPenalty
	}

	score := botBaseScore

	// Lookahead: penalize by how close the nearest projected collision is.
	probe := next
	for dist := 2; dist <= botLookahead; dist++ {
		probe = probe.Step(d)
		if m.collides(probe) {
			score -= float64(botLookahead-dist+1) * botLookaheadUnit
			break
		}
	}

	// Mild center-seeking bias.
	center := Cell{m.Mode.GridSize / 2, m.Mode.GridSize / 2}
	score -= float64(next.Manhattan(center)) * botCenterWeight

	// Sharp penalty near the shrinking inset boundary.
	if bd := m.insetDistance(next); bd >= 0 {
		score -= botWallPenalty / float64(bd+1)
	} else {
		score -= botWallPenalty
	}

	// Open-space preference around the candidate destination.
	open := 0
	for dx := -botOpenRadius; dx <= botOpenRadius; dx++ {
		for dy := -botOpenRadius; dy <= botOpenRadius; dy++ {
			if abs(dx)+abs(dy) > botOpenRadius || (dx == 0 && dy == 0) {
				continue
			}
			if !m.collides(Cell{next.X + dx, next.Y + dy}) {
				open++
			}
		}
	}
	score += float64(open) * botOpenCellBonus

	return score
}
