package game

// Cell is an integer grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dir is a cardinal unit vector. Headings never take any other value.
type Dir struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	DirUp    = Dir{0, -1}
	DirDown  = Dir{0, 1}
	DirLeft  = Dir{-1, 0}
	DirRight = Dir{1, 0}
)

// Dirs lists the four cardinal directions in a fixed order.
// Bot candidate scoring relies on this order for deterministic tie-breaks.
var Dirs = [4]Dir{DirUp, DirDown, DirLeft, DirRight}

// ParseDir maps a wire token to a direction.
func ParseDir(token string) (Dir, bool) {
	switch token {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	}
	return Dir{}, false
}

// String returns the wire token for the direction.
func (d Dir) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return "none"
}

// Reverse returns the opposite direction.
func (d Dir) Reverse() Dir {
	return Dir{-d.DX, -d.DY}
}

// Perpendicular reports whether o lies on the other axis than d.
// A perpendicular direction can never be the exact reverse, so this single
// check covers both input rules: no 180° turns and no same-axis commands.
func (d Dir) Perpendicular(o Dir) bool {
	return d.DX*o.DX+d.DY*o.DY == 0
}

// Step returns the neighboring cell one unit along d.
func (c Cell) Step(d Dir) Cell {
	return Cell{c.X + d.DX, c.Y + d.DY}
}

// Manhattan returns the L1 distance between two cells.
func (c Cell) Manhattan(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
