package engine

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// IsAdjacent reports whether two positions share a side
func IsAdjacent(a, b Position) bool {
	return ManhattanDistance(a, b) == 1
}

// Neighbors returns the four orthogonal neighbours of p in the order
// west, east, north, south
func Neighbors(p Position) [4]Position {
	return [4]Position{
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
	}
}

// Offset returns the coordinate one cell ahead of (x, y) when facing d
func (d Direction) Offset(x, y int) (int, int) {
	switch d {
	case South:
		return x, y + 1
	case East:
		return x + 1, y
	case North:
		return x, y - 1
	default:
		return x - 1, y
	}
}

// Left returns the direction after a quarter turn to the left
func (d Direction) Left() Direction {
	switch d {
	case South:
		return East
	case East:
		return North
	case North:
		return West
	default:
		return South
	}
}

// Right returns the direction after a quarter turn to the right
func (d Direction) Right() Direction {
	switch d {
	case South:
		return West
	case West:
		return North
	case North:
		return East
	default:
		return South
	}
}

// ShortestPath returns the number of steps needed to walk from the start to
// a cell next to goal. Monsters count as passable since they can be
// attacked; rocks and unknown entities block.
func ShortestPath(level *Level, start, goal Position) (int, bool) {
	if IsAdjacent(start, goal) {
		return 0, true
	}

	visited := map[Position]bool{start: true}
	queue := []Position{start}
	steps := 0

	for len(queue) > 0 {
		steps++
		next := make([]Position, 0, len(queue)*2)
		for _, pos := range queue {
			for _, n := range Neighbors(pos) {
				if visited[n] {
					continue
				}
				cell, ok := level.At(n.X, n.Y)
				if !ok || (cell.Kind != KindNothing && cell.Kind != KindMonster) {
					continue
				}
				if IsAdjacent(n, goal) {
					return steps, true
				}
				visited[n] = true
				next = append(next, n)
			}
		}
		queue = next
	}

	return UnreachableDistance, false
}

// UnreachableDistance is reported when no path exists
const UnreachableDistance = 999999
