package engine

import "strings"

// Player is the capability set handed to a solution for the length of one run.
// Actions return a non-nil error when the run has failed; once that happens
// every later action returns the same error without touching the level.
type Player interface {
	TurnLeft() error
	TurnRight() error
	Step() error
	Attack() error

	// Check looks at the cell reached by turning "LEFT" or "RIGHT" (without
	// turning) or by a "STEP" forward. Other sides report CategoryError.
	Check(side string) Category
	CheckMap(x, y int) Category
	IsNextToTarget() bool

	X() int
	Y() int
	Direction() Direction
	TargetX() int
	TargetY() int
}

// runPlayer owns the cloned level and the move log of a single run
type runPlayer struct {
	level     *Level
	token     string
	x, y      int
	direction Direction
	target    Position
	moves     []Batch
	fatal     error
}

func newRunPlayer(level *Level) (*runPlayer, error) {
	playerPos, targetPos, err := level.locate()
	if err != nil {
		return nil, err
	}

	cell, _ := level.At(playerPos.X, playerPos.Y)
	return &runPlayer{
		level:     level,
		token:     cell.Token,
		x:         playerPos.X,
		y:         playerPos.Y,
		direction: South,
		target:    targetPos,
	}, nil
}

func (p *runPlayer) X() int               { return p.x }
func (p *runPlayer) Y() int               { return p.y }
func (p *runPlayer) Direction() Direction { return p.direction }
func (p *runPlayer) TargetX() int         { return p.target.X }
func (p *runPlayer) TargetY() int         { return p.target.Y }

func (p *runPlayer) push(moves ...Move) {
	p.moves = append(p.moves, Batch(moves))
}

func (p *runPlayer) move(action Action) Move {
	return Move{ID: p.token, Action: action}
}

func (p *runPlayer) fail(err error) error {
	p.fatal = err
	return err
}

func (p *runPlayer) TurnLeft() error {
	if p.fatal != nil {
		return p.fatal
	}
	p.direction = p.direction.Left()
	p.push(p.move(ActionTurnLeft))
	return nil
}

func (p *runPlayer) TurnRight() error {
	if p.fatal != nil {
		return p.fatal
	}
	p.direction = p.direction.Right()
	p.push(p.move(ActionTurnRight))
	return nil
}

func (p *runPlayer) Step() error {
	if p.fatal != nil {
		return p.fatal
	}
	if err := p.checkValid(true); err != nil {
		return err
	}

	x, y := p.direction.Offset(p.x, p.y)
	p.level.clear(p.x, p.y)
	p.level.set(x, y, Cell{Kind: KindPlayer, Token: p.token})
	p.x, p.y = x, y
	p.push(p.move(ActionStep))
	return nil
}

func (p *runPlayer) Attack() error {
	if p.fatal != nil {
		return p.fatal
	}

	x, y := p.direction.Offset(p.x, p.y)
	if cell, ok := p.level.At(x, y); ok && cell.Kind == KindMonster {
		p.push(p.move(ActionAttack), Move{ID: cell.Token, Action: ActionDie})
		p.level.clear(x, y)
	} else {
		p.push(p.move(ActionAttack))
	}

	return p.checkValid(false)
}

func (p *runPlayer) Check(side string) Category {
	var d Direction
	switch strings.ToUpper(side) {
	case "LEFT":
		d = p.direction.Left()
	case "RIGHT":
		d = p.direction.Right()
	case "STEP":
		d = p.direction
	default:
		return CategoryError
	}

	x, y := d.Offset(p.x, p.y)
	return p.CheckMap(x, y)
}

func (p *runPlayer) CheckMap(x, y int) Category {
	cell, ok := p.level.At(x, y)
	if !ok {
		return CategoryError
	}
	return cell.Category()
}

func (p *runPlayer) IsNextToTarget() bool {
	return IsAdjacent(Position{X: p.x, Y: p.y}, p.target)
}

// checkValid is the legality check run before every step and after every
// attack. An adjacent monster always wins over the requested step.
func (p *runPlayer) checkValid(moving bool) error {
	for _, n := range Neighbors(Position{X: p.x, Y: p.y}) {
		if cell, ok := p.level.At(n.X, n.Y); ok && cell.Kind == KindMonster {
			p.push(Move{ID: cell.Token, Action: ActionAttack}, p.move(ActionDie))
			p.push(Move{ID: cell.Token, Action: ActionWin})
			return p.fail(ErrMonsterKilled)
		}
	}

	if !moving {
		return nil
	}

	x, y := p.direction.Offset(p.x, p.y)
	cell, ok := p.level.At(x, y)
	if ok && cell.IsEmpty() {
		return nil
	}

	p.push(p.move(ActionStepFailed))
	if ok && cell.Kind == KindTarget {
		// the target turns to face the player, then strikes
		if x-1 == p.x {
			p.push(Move{ID: cell.Token, Action: ActionTurnRight})
		}
		if x+1 == p.x {
			p.push(Move{ID: cell.Token, Action: ActionTurnLeft})
		}
		if y-1 == p.y {
			p.push(Move{ID: cell.Token, Action: ActionTurnLeft})
			p.push(Move{ID: cell.Token, Action: ActionTurnLeft})
		}
		p.push(Move{ID: cell.Token, Action: ActionAttack})
	}

	return p.fail(ErrInvalidMove)
}

// finish appends the winning batch when the player ended next to a target
func (p *runPlayer) finish() error {
	if !p.level.Is(p.x, p.y, KindPlayer) {
		return ErrTargetUnreached
	}

	for _, n := range Neighbors(Position{X: p.x, Y: p.y}) {
		if cell, ok := p.level.At(n.X, n.Y); ok && cell.Kind == KindTarget {
			p.push(p.move(ActionWin), Move{ID: cell.Token, Action: ActionWin})
			return nil
		}
	}

	return ErrTargetUnreached
}

// finalize guarantees the log ends on a player win or die
func (p *runPlayer) finalize() []Batch {
	if len(p.moves) == 0 {
		p.push(p.move(ActionDie))
		return p.moves
	}

	last := p.moves[len(p.moves)-1]
	for _, m := range last {
		if m.ID == p.token {
			if m.Action == ActionWin || m.Action == ActionDie {
				return p.moves
			}
			break
		}
	}

	p.push(p.move(ActionDie))
	return p.moves
}
