package valueobjects

// Position is a 2D coordinate on the canvas. The rendering layer owns node
// placement at runtime; the engine stores positions so snapshots restore the
// layout and so dispatch-time offsets stay deterministic.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position from coordinates
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Offset returns a new position shifted by dx and dy
func (p Position) Offset(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}
