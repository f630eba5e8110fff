package engine

// ParseCell turns a map token into a tagged cell
func ParseCell(token string) Cell {
	if token == "" {
		return Cell{Kind: KindNothing, Token: EmptyToken}
	}

	switch token[0] {
	case '-':
		return Cell{Kind: KindNothing, Token: token}
	case 'p':
		return Cell{Kind: KindPlayer, Token: token}
	case 'm':
		return Cell{Kind: KindMonster, Token: token}
	case 'r':
		return Cell{Kind: KindRock, Token: token}
	case 'w':
		return Cell{Kind: KindTarget, Token: token}
	default:
		return Cell{Kind: KindUnknown, Token: token}
	}
}

// Category returns what the player capabilities report for this cell
func (c Cell) Category() Category {
	switch c.Kind {
	case KindNothing:
		return CategoryNothing
	case KindPlayer:
		return CategoryPlayer
	case KindMonster:
		return CategoryMonster
	case KindRock:
		return CategoryRock
	case KindTarget:
		return CategoryTarget
	default:
		return CategoryError
	}
}

// IsEmpty reports whether the player can step into the cell
func (c Cell) IsEmpty() bool {
	return c.Kind == KindNothing
}

// Level is a grid of cells indexed as grid[y][x]. Rows may differ in length;
// every lookup is bounds-checked against the row it reads.
type Level struct {
	grid [][]Cell
}

// NewLevel builds a level from rows of map tokens
func NewLevel(design [][]string) *Level {
	grid := make([][]Cell, len(design))
	for y, row := range design {
		grid[y] = make([]Cell, len(row))
		for x, token := range row {
			grid[y][x] = ParseCell(token)
		}
	}
	return &Level{grid: grid}
}

// Clone returns a deep copy that can be mutated without touching the original
func (l *Level) Clone() *Level {
	grid := make([][]Cell, len(l.grid))
	for y, row := range l.grid {
		grid[y] = make([]Cell, len(row))
		copy(grid[y], row)
	}
	return &Level{grid: grid}
}

// Height returns the number of rows
func (l *Level) Height() int {
	return len(l.grid)
}

// Width returns the length of the first row
func (l *Level) Width() int {
	if len(l.grid) == 0 {
		return 0
	}
	return len(l.grid[0])
}

// InBounds reports whether (x, y) addresses a cell
func (l *Level) InBounds(x, y int) bool {
	return y >= 0 && y < len(l.grid) && x >= 0 && x < len(l.grid[y])
}

// At returns the cell at (x, y)
func (l *Level) At(x, y int) (Cell, bool) {
	if !l.InBounds(x, y) {
		return Cell{}, false
	}
	return l.grid[y][x], true
}

// Is reports whether the cell at (x, y) holds an entity of the given kind
func (l *Level) Is(x, y int, kind Kind) bool {
	cell, ok := l.At(x, y)
	return ok && cell.Kind == kind
}

func (l *Level) set(x, y int, cell Cell) {
	l.grid[y][x] = cell
}

func (l *Level) clear(x, y int) {
	l.grid[y][x] = Cell{Kind: KindNothing, Token: EmptyToken}
}

// Find returns the positions of every cell of the given kind in scan order
func (l *Level) Find(kind Kind) []Position {
	var found []Position
	for y, row := range l.grid {
		for x, cell := range row {
			if cell.Kind == kind {
				found = append(found, Position{X: x, Y: y})
			}
		}
	}
	return found
}

// Design returns the level as rows of map tokens
func (l *Level) Design() [][]string {
	design := make([][]string, len(l.grid))
	for y, row := range l.grid {
		design[y] = make([]string, len(row))
		for x, cell := range row {
			design[y][x] = cell.Token
		}
	}
	return design
}

// locate finds the unique player and target of the level
func (l *Level) locate() (player, target Position, err error) {
	players := l.Find(KindPlayer)
	targets := l.Find(KindTarget)

	if len(players) == 0 || len(targets) == 0 {
		return Position{}, Position{}, ErrConfiguration
	}
	if len(players) > 1 {
		return Position{}, Position{}, configurationError("Level has more than one player")
	}
	if len(targets) > 1 {
		return Position{}, Position{}, configurationError("Level has more than one target")
	}

	return players[0], targets[0], nil
}
