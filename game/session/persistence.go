package session

import (
	"time"

	"github.com/wricardo/jshero/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the stored form of a session. The
// compiled script is not stored; it is rebuilt from Code on load.
type PersistedSessionData struct {
	ID             string                        `json:"id"`
	Code           string                        `json:"code"`
	CodeError      string                        `json:"code_error,omitempty"`
	CurrentLevel   int                           `json:"current_level"`
	Reports        map[string]*service.RunReport `json:"reports,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	LastAccessedAt time.Time                     `json:"last_accessed_at"`
}

func newPersistedSessionData(session *service.Session) *PersistedSessionData {
	return &PersistedSessionData{
		ID:             session.ID,
		Code:           session.Code,
		CodeError:      session.CodeError,
		CurrentLevel:   session.CurrentLevel,
		Reports:        session.Reports,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	}
}

// restore rebuilds a session, recompiling its code when it compiled before
func (d *PersistedSessionData) restore(compiler service.Compiler) *service.Session {
	session := &service.Session{
		ID:             d.ID,
		Code:           d.Code,
		CodeError:      d.CodeError,
		CurrentLevel:   d.CurrentLevel,
		Reports:        d.Reports,
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}
	if session.Reports == nil {
		session.Reports = make(map[string]*service.RunReport)
	}

	if d.Code != "" && d.CodeError == "" && compiler != nil {
		compiled, err := compiler.Compile(d.Code)
		if err != nil {
			// the loop budget may have changed since the code was stored
			session.CodeError = err.Error()
		} else {
			session.Script = compiled
		}
	}

	return session
}
