package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/service"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
)

// level files are looked up with these extensions, in this order
var levelExtensions = []string{".json", ".yaml", ".yml"}

var levelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Manager handles level loading and caching
type Manager struct {
	levelsDir string
	levels    map[string]*engine.LevelConfig
	builtin   map[string]*engine.LevelConfig
	logger    *log.Logger
	mu        sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used to report skipped level files
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a level manager reading from levelsDir
func NewManager(levelsDir string, opts ...Option) (*Manager, error) {
	info, err := os.Stat(levelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("levels directory does not exist: %s", levelsDir)
		}
		return nil, fmt.Errorf("failed to stat levels directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("levels path is not a directory: %s", levelsDir)
	}

	m := &Manager{
		levelsDir: levelsDir,
		levels:    make(map[string]*engine.LevelConfig),
		builtin:   make(map[string]*engine.LevelConfig),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, level := range engine.DefaultLevels() {
		m.builtin[level.ID] = level
	}

	return m, nil
}

// ValidID reports whether id can name a level file
func ValidID(id string) bool {
	return levelIDPattern.MatchString(id)
}

// LoadLevel loads a level by id. When the levels directory holds no level
// files the built-in catalogue is used instead.
func (m *Manager) LoadLevel(id string) (*engine.LevelConfig, error) {
	if !ValidID(id) {
		return nil, ErrLevelNotFound
	}

	m.mu.RLock()
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	level, err := m.readLevel(id)
	if errors.Is(err, ErrLevelNotFound) {
		files, listErr := m.levelFiles()
		if listErr == nil && len(files) == 0 {
			if builtin, ok := m.builtin[id]; ok {
				return builtin, nil
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	m.levels[id] = level
	return level, nil
}

func (m *Manager) readLevel(id string) (*engine.LevelConfig, error) {
	for _, ext := range levelExtensions {
		path := filepath.Join(m.levelsDir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read level file: %w", err)
		}

		level, err := engine.ParseLevelConfig(ext, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		level.ID = id

		if err := engine.ValidateLevelConfig(level); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		return level, nil
	}
	return nil, ErrLevelNotFound
}

// levelFiles returns the level ids found in the levels directory
func (m *Manager) levelFiles() ([]string, error) {
	entries, err := os.ReadDir(m.levelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read levels directory: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !isLevelExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if !ValidID(id) || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func isLevelExtension(ext string) bool {
	for _, e := range levelExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Levels returns every valid level ordered by Order, then id
func (m *Manager) Levels() ([]*engine.LevelConfig, error) {
	ids, err := m.levelFiles()
	if err != nil {
		return nil, err
	}

	var levels []*engine.LevelConfig
	if len(ids) == 0 {
		for _, level := range m.builtin {
			levels = append(levels, level)
		}
	}
	for _, id := range ids {
		level, err := m.LoadLevel(id)
		if err != nil {
			m.logger.Warn("skipping level", "id", id, "err", err)
			continue
		}
		levels = append(levels, level)
	}

	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Order != levels[j].Order {
			return levels[i].Order < levels[j].Order
		}
		return levels[i].ID < levels[j].ID
	})
	return levels, nil
}

// ListLevels returns summaries of all available levels in play order
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	levels, err := m.Levels()
	if err != nil {
		return nil, err
	}

	infos := make([]*service.LevelInfo, 0, len(levels))
	for i, level := range levels {
		infos = append(infos, service.NewLevelInfo(i, level))
	}
	return infos, nil
}

// SaveLevel validates a level and writes it to the levels directory as JSON
func (m *Manager) SaveLevel(id string, level *engine.LevelConfig) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: level id '%s' must be letters, digits, '-' or '_'", ErrInvalidLevel, id)
	}
	if level == nil {
		return fmt.Errorf("%w: level is required", ErrInvalidLevel)
	}

	saved := *level
	saved.ID = id
	if err := engine.ValidateLevelConfig(&saved); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	data, err := json.MarshalIndent(&saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// a level saved as JSON replaces any YAML file with the same id
	for _, ext := range levelExtensions[1:] {
		_ = os.Remove(filepath.Join(m.levelsDir, id+ext))
	}
	if err := os.WriteFile(filepath.Join(m.levelsDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.levels[id] = &saved
	return nil
}

// RefreshCache drops every cached level so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]*engine.LevelConfig)
}
