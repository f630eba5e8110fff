package engine

// Kind represents the entity held by a grid cell
type Kind string

const (
	KindNothing Kind = "nothing"
	KindPlayer  Kind = "player"
	KindMonster Kind = "monster"
	KindRock    Kind = "rock"
	KindTarget  Kind = "target"
	KindUnknown Kind = "unknown"

	// EmptyToken marks a cell without an entity
	EmptyToken = "-"

	// Validation constants
	MinLevelSize = 2
	MaxLevelSize = 50
)

// Category is what the player capabilities report about a cell
type Category string

const (
	CategoryMonster Category = "MONSTER"
	CategoryPlayer  Category = "PLAYER"
	CategoryTarget  Category = "TARGET"
	CategoryRock    Category = "ROCK"
	CategoryNothing Category = "NOTHING"
	CategoryError   Category = "ERROR"
)

// Direction represents where the player is facing
type Direction string

const (
	North Direction = "NORTH"
	South Direction = "SOUTH"
	East  Direction = "EAST"
	West  Direction = "WEST"
)

// Action represents a single animatable effect in the move log
type Action string

const (
	ActionTurnLeft   Action = "turn_l"
	ActionTurnRight  Action = "turn_r"
	ActionStep       Action = "step"
	ActionStepFailed Action = "step_f"
	ActionAttack     Action = "attack"
	ActionWin        Action = "win"
	ActionDie        Action = "die"
)

// Cell represents a single grid cell: the entity kind plus the token it was read from
type Cell struct {
	Kind  Kind   `json:"kind"`
	Token string `json:"token"`
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Move is one entity performing one action
type Move struct {
	ID     string `json:"id"`
	Action Action `json:"action"`
}

// Batch groups the moves that happen on the same beat
type Batch []Move

// Result is the outcome of one run of a solution against a level
type Result struct {
	Moves   []Batch `json:"moves"`
	Message string  `json:"message,omitempty"`

	// Err is the run-local failure behind Message, nil on success
	Err error `json:"-"`
}

// LevelConfig represents a level definition as stored on disk
type LevelConfig struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Order       int        `json:"order" yaml:"order"`
	Design      [][]string `json:"design" yaml:"design"`
}
