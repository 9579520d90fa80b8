package game

import "testing"

func TestHeadingPerpendicularityRules(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{5, 5}, DirRight)

	cases := []struct {
		d  Dir
		ok bool
	}{
		{DirLeft, false},  // reversal
		{DirRight, false}, // redundant same-axis
		{DirUp, true},
		{DirDown, true},
	}
	for _, c := range cases {
		if got := p.setDesiredHeading(c.d); got != c.ok {
			t.Errorf("setDesiredHeading(%v) = %v, want %v", c.d, got, c.ok)
		}
	}
}

func TestPendingHeadingLastWriteWins(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{5, 5}, DirRight)

	p.setDesiredHeading(DirUp)
	p.setDesiredHeading(DirDown)
	p.consumePendingHeading()

	if p.Heading != DirDown {
		t.Errorf("heading = %v, want the latest command", p.Heading)
	}
	// The buffer is one deep; a second consume is a no-op.
	p.consumePendingHeading()
	if p.Heading != DirDown {
		t.Error("consume without a pending command changed the heading")
	}
}

func TestPendingRevalidatedAtConsumeTime(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{5, 5}, DirRight)

	p.setDesiredHeading(DirUp)
	// The heading changes before the step boundary; up is now a reversal.
	p.Heading = DirDown
	p.consumePendingHeading()

	if p.Heading != DirDown {
		t.Errorf("stale pending command applied: heading = %v", p.Heading)
	}
}

func TestSpawnSeedsTrail(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{3, 7}, DirUp)

	if len(p.Trail) != 1 || p.Trail[0] != (Cell{3, 7}) {
		t.Fatalf("trail = %v, want just the spawn cell", p.Trail)
	}

	p.advance(Cell{3, 6})
	if len(p.Trail) != 2 || p.Pos != (Cell{3, 6}) {
		t.Fatalf("advance did not append: trail=%v pos=%v", p.Trail, p.Pos)
	}
}

func TestEliminateClearsTransientState(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{5, 5}, DirRight)
	p.setDesiredHeading(DirUp)
	p.stepAcc = 0.7

	p.eliminate()

	if p.Alive() {
		t.Fatal("participant still alive after eliminate")
	}
	if p.hasPending || p.stepAcc != 0 {
		t.Error("pending command and step accumulator must be discarded")
	}
	if p.setDesiredHeading(DirUp) {
		t.Error("eliminated participant accepted input")
	}
}

func TestAdvanceOnEliminatedPanics(t *testing.T) {
	p := NewParticipant("A", "", ControllerHuman)
	p.spawn(Cell{5, 5}, DirRight)
	p.eliminate()

	defer func() {
		if recover() == nil {
			t.Fatal("advance on an eliminated participant must panic")
		}
	}()
	p.advance(Cell{6, 5})
}

func TestParticipantIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := NewParticipant("A", "", ControllerBot)
		if seen[p.ID] {
			t.Fatal("duplicate participant id")
		}
		seen[p.ID] = true
	}
}

func TestDirHelpers(t *testing.T) {
	if DirUp.Reverse() != DirDown || DirLeft.Reverse() != DirRight {
		t.Error("reverse is broken")
	}
	if !DirUp.Perpendicular(DirLeft) || DirUp.Perpendicular(DirDown) {
		t.Error("perpendicularity is broken")
	}
	for _, tok := range []string{"up", "down", "left", "right"} {
		d, ok := ParseDir(tok)
		if !ok {
			t.Errorf("ParseDir(%q) rejected a valid token", tok)
		}
		if d.String() != tok {
			t.Errorf("ParseDir(%q).String() = %q", tok, d.String())
		}
	}
	if _, ok := ParseDir("diagonal"); ok {
		t.Error("ParseDir accepted an invalid token")
	}
}
