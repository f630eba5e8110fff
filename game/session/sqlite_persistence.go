package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wricardo/jshero/game/service"
)

// SQLitePersistence implements SessionPersistence on a SQLite database
type SQLitePersistence struct {
	db       *sql.DB
	compiler service.Compiler
}

// NewSQLitePersistence opens (or creates) the database at dbPath and runs
// migrations. compiler rebuilds the solution of every loaded session.
func NewSQLitePersistence(dbPath string, compiler service.Compiler) (*SQLitePersistence, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: cannot create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: cannot connect to database: %w", err)
	}

	p := &SQLitePersistence{db: db, compiler: compiler}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}

	return p, nil
}

func (p *SQLitePersistence) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL DEFAULT '',
			code_error TEXT NOT NULL DEFAULT '',
			current_level INTEGER NOT NULL DEFAULT 0,
			reports TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_last_accessed ON sessions(last_accessed_at);
	`

	_, err := p.db.Exec(schema)
	return err
}

// Close closes the database connection
func (p *SQLitePersistence) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Save inserts or replaces a session row
func (p *SQLitePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := newPersistedSessionData(session)
	reports, err := json.Marshal(data.Reports)
	if err != nil {
		return fmt.Errorf("sqlite: cannot marshal reports: %w", err)
	}

	_, err = p.db.Exec(`
		INSERT INTO sessions (id, code, code_error, current_level, reports, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			code_error = excluded.code_error,
			current_level = excluded.current_level,
			reports = excluded.reports,
			last_accessed_at = excluded.last_accessed_at`,
		data.ID, data.Code, data.CodeError, data.CurrentLevel, string(reports),
		data.CreatedAt.UTC().Format(time.RFC3339Nano), data.LastAccessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: cannot save session %s: %w", session.ID, err)
	}
	return nil
}

// Load reads a session row
func (p *SQLitePersistence) Load(id string) (*service.Session, error) {
	var (
		data                  PersistedSessionData
		reports               string
		createdAt, accessedAt string
	)

	err := p.db.QueryRow(`
		SELECT id, code, code_error, current_level, reports, created_at, last_accessed_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&data.ID, &data.Code, &data.CodeError, &data.CurrentLevel, &reports, &createdAt, &accessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: cannot load session %s: %w", id, err)
	}

	if reports != "" {
		if err := json.Unmarshal([]byte(reports), &data.Reports); err != nil {
			return nil, fmt.Errorf("sqlite: cannot unmarshal reports: %w", err)
		}
	}
	if data.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: bad created_at for %s: %w", id, err)
	}
	if data.LastAccessedAt, err = time.Parse(time.RFC3339Nano, accessedAt); err != nil {
		return nil, fmt.Errorf("sqlite: bad last_accessed_at for %s: %w", id, err)
	}

	return data.restore(p.compiler), nil
}

// Delete removes a session row
func (p *SQLitePersistence) Delete(id string) error {
	result, err := p.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: cannot delete session %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs, most recently used first
func (p *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := p.db.Query("SELECT id FROM sessions ORDER BY last_accessed_at DESC")
	if err != nil {
		return nil, fmt.Errorf("sqlite: cannot list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: cannot scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a session row exists
func (p *SQLitePersistence) Exists(id string) bool {
	var one int
	err := p.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	return err == nil
}
