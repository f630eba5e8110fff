package service

import (
	"time"

	"github.com/wricardo/jshero/game/engine"
)

// SessionInfo provides information about a learner session
type SessionInfo struct {
	ID             string    `json:"id"`
	Code           string    `json:"code,omitempty"`
	CodeError      string    `json:"code_error,omitempty"`
	CurrentLevel   int       `json:"current_level"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// RunReport is the outcome of running the session's solution on one level
type RunReport struct {
	SessionID string         `json:"session_id"`
	LevelID   string         `json:"level_id"`
	Index     int            `json:"index"`
	Name      string         `json:"name"`
	Passed    bool           `json:"passed"`
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Moves     []engine.Batch `json:"moves"`
	Design    [][]string     `json:"design"`
	RanAt     time.Time      `json:"ran_at"`
}

// SubmitResult contains the result of submitting new code
type SubmitResult struct {
	SessionID    string       `json:"session_id"`
	Accepted     bool         `json:"accepted"`
	CodeError    string       `json:"code_error,omitempty"`
	ErrorLine    int          `json:"error_line,omitempty"`
	ErrorColumn  int          `json:"error_column,omitempty"`
	Reports      []*RunReport `json:"reports,omitempty"`
	CurrentLevel int          `json:"current_level"`
	Unlocked     []string     `json:"unlocked,omitempty"` // level ids unlocked by this submission
	Completed    bool         `json:"completed"`
}

// LevelProgress is the state of one level within a session
type LevelProgress struct {
	*LevelInfo
	Unlocked  bool   `json:"unlocked"`
	Attempted bool   `json:"attempted"`
	Passed    bool   `json:"passed"`
	Message   string `json:"message,omitempty"`
}

// ProgressInfo summarizes how far a session got through the levels
type ProgressInfo struct {
	SessionID    string           `json:"session_id"`
	CurrentLevel int              `json:"current_level"`
	Completed    bool             `json:"completed"`
	Passed       int              `json:"passed"`
	Total        int              `json:"total"`
	Levels       []*LevelProgress `json:"levels"`
}

// LevelInfo provides information about a level
type LevelInfo struct {
	ID          string `json:"id"` // The identifier to use for running the level
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Monsters    int    `json:"monsters"`
	Rocks       int    `json:"rocks"`
}

// NewLevelInfo summarizes level at position index of the play order
func NewLevelInfo(index int, level *engine.LevelConfig) *LevelInfo {
	grid := level.Level()
	return &LevelInfo{
		ID:          level.ID,
		Index:       index,
		Name:        level.Name,
		Description: level.Description,
		Order:       level.Order,
		Width:       grid.Width(),
		Height:      grid.Height(),
		Monsters:    len(grid.Find(engine.KindMonster)),
		Rocks:       len(grid.Find(engine.KindRock)),
	}
}
