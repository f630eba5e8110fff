package service

import (
	"context"
	"time"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/script"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Playing
	SubmitCode(ctx context.Context, sessionID, code string) (*SubmitResult, error)
	RunLevel(ctx context.Context, sessionID, levelID string) (*RunReport, error)
	GetProgress(ctx context.Context, sessionID string) (*ProgressInfo, error)

	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	GetLevel(ctx context.Context, levelID string) (*engine.LevelConfig, error)
	SaveLevel(ctx context.Context, levelID string, level *engine.LevelConfig) error

	// Tooling
	Instrument(ctx context.Context, code string) (string, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LevelManager handles level loading
type LevelManager interface {
	LoadLevel(id string) (*engine.LevelConfig, error)
	Levels() ([]*engine.LevelConfig, error)
	ListLevels() ([]*LevelInfo, error)
	SaveLevel(id string, level *engine.LevelConfig) error
}

// Compiler turns learner source into runnable scripts
type Compiler interface {
	Compile(source string) (*script.Script, error)
	Instrument(source string) (string, error)
}

// Session represents a learner workspace
type Session struct {
	ID        string
	Code      string
	Script    *script.Script // nil until code compiles
	CodeError string

	// CurrentLevel is the index of the furthest unlocked level; it equals
	// the number of levels once every level has been passed.
	CurrentLevel int
	Reports      map[string]*RunReport

	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// NewSession creates an empty session with only the first level unlocked
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Reports:        make(map[string]*RunReport),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}
