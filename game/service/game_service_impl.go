package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/script"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrLevelNotFound   = errors.New("level not found")
	ErrLevelLocked     = errors.New("level is locked")
	ErrNoSolution      = errors.New("no working solution submitted")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	levels   LevelManager
	compiler Compiler
	logger   *log.Logger
	mu       sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLogger sets the logger used for persistence warnings and run summaries
func WithLogger(logger *log.Logger) Option {
	return func(s *gameServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, levels LevelManager, compiler Compiler, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		compiler: compiler,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *gameServiceImpl) save(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.Warn("failed to persist session", "session", sessionID, "err", err)
	}
}

func (s *gameServiceImpl) levelCount() int {
	levels, err := s.levels.Levels()
	if err != nil {
		return 0
	}
	return len(levels)
}

func newSessionInfo(sess *Session, total int) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		Code:           sess.Code,
		CodeError:      sess.CodeError,
		CurrentLevel:   sess.CurrentLevel,
		Completed:      total > 0 && sess.CurrentLevel >= total,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}
}

// CreateSession creates a new learner session
func (s *gameServiceImpl) CreateSession(ctx context.Context) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("")
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return newSessionInfo(sess, s.levelCount()), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	return newSessionInfo(sess, s.levelCount()), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.levelCount()
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, newSessionInfo(sess, total))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// SubmitCode replaces the session's code. Code that does not compile is
// kept together with its error and no level is run. Otherwise every
// unlocked level is replayed in order and passing levels unlock the next.
func (s *gameServiceImpl) SubmitCode(ctx context.Context, sessionID, code string) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	levels, err := s.levels.Levels()
	if err != nil {
		return nil, fmt.Errorf("failed to load levels: %w", err)
	}

	result := &SubmitResult{SessionID: sess.ID}
	sess.Code = code

	compiled, err := s.compiler.Compile(code)
	if err != nil {
		sess.Script = nil
		sess.CodeError = err.Error()

		result.CodeError = sess.CodeError
		var syntax *script.SyntaxError
		if errors.As(err, &syntax) {
			result.ErrorLine = syntax.Line
			result.ErrorColumn = syntax.Column
		}
		result.CurrentLevel = sess.CurrentLevel
		result.Completed = sess.CurrentLevel >= len(levels)

		s.save(sess.ID)
		return result, nil
	}

	sess.Script = compiled
	sess.CodeError = ""

	before := sess.CurrentLevel
	result.Accepted = true
	result.Reports = s.advance(ctx, sess, levels, -1)
	result.CurrentLevel = sess.CurrentLevel
	result.Completed = sess.CurrentLevel >= len(levels)
	for i := before + 1; i <= sess.CurrentLevel && i < len(levels); i++ {
		result.Unlocked = append(result.Unlocked, levels[i].ID)
	}

	s.logger.Info("code submitted", "session", sess.ID, "levels_run", len(result.Reports), "current_level", sess.CurrentLevel)
	s.save(sess.ID)
	return result, nil
}

// RunLevel replays one unlocked level with the session's solution
func (s *gameServiceImpl) RunLevel(ctx context.Context, sessionID, levelID string) (*RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Script == nil {
		if sess.CodeError != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoSolution, sess.CodeError)
		}
		return nil, ErrNoSolution
	}

	levels, err := s.levels.Levels()
	if err != nil {
		return nil, fmt.Errorf("failed to load levels: %w", err)
	}

	index := -1
	for i, level := range levels {
		if level.ID == levelID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, levelID)
	}
	if index > sess.CurrentLevel {
		return nil, fmt.Errorf("%w: %s", ErrLevelLocked, levelID)
	}

	s.advance(ctx, sess, levels, index)
	s.save(sess.ID)
	return sess.Reports[levelID], nil
}

// advance runs the unlocked levels and moves the session forward. With
// only >= 0 just that level is run and the stored reports stand in for
// the others. A level unlocks the next one when it and every level
// before it passed.
func (s *gameServiceImpl) advance(ctx context.Context, sess *Session, levels []*engine.LevelConfig, only int) []*RunReport {
	if sess.Reports == nil {
		sess.Reports = make(map[string]*RunReport)
	}

	var ran []*RunReport
	current := sess.CurrentLevel
	allPassed := true
	for i := 0; i < len(levels) && i <= current; i++ {
		level := levels[i]
		report := sess.Reports[level.ID]
		if only < 0 || only == i {
			report = s.run(ctx, sess, i, level)
			sess.Reports[level.ID] = report
			ran = append(ran, report)
		}

		if report != nil && report.Passed && allPassed {
			current = max(i+1, current)
		} else {
			allPassed = false
		}
	}
	sess.CurrentLevel = current
	return ran
}

func (s *gameServiceImpl) run(ctx context.Context, sess *Session, index int, level *engine.LevelConfig) *RunReport {
	report := &RunReport{
		SessionID: sess.ID,
		LevelID:   level.ID,
		Index:     index,
		Name:      level.Name,
		Design:    level.Design,
		RanAt:     time.Now(),
	}

	result, err := engine.ResolveConfig(level, sess.Script.Solution(ctx))
	if err == nil {
		// viewers replay the log against the level design
		err = engine.CheckEntities(level.Level(), result.Moves)
	}
	if err != nil {
		report.Message = err.Error()
		if engine.IsFatal(err) {
			s.logger.Error("level could not be resolved", "level", level.ID, "err", err)
		} else {
			s.logger.Error("move log does not match level", "level", level.ID, "err", err)
		}
		return report
	}

	report.Moves = result.Moves
	report.Message = result.Message
	report.Passed = result.Passed()
	report.Success = result.Success()
	s.logger.Debug("level run", "session", sess.ID, "level", level.ID, "passed", report.Passed, "batches", len(report.Moves))
	return report
}

// GetProgress reports the state of every level for a session
func (s *gameServiceImpl) GetProgress(ctx context.Context, sessionID string) (*ProgressInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	levels, err := s.levels.ListLevels()
	if err != nil {
		return nil, fmt.Errorf("failed to load levels: %w", err)
	}

	progress := &ProgressInfo{
		SessionID:    sess.ID,
		CurrentLevel: sess.CurrentLevel,
		Completed:    len(levels) > 0 && sess.CurrentLevel >= len(levels),
		Total:        len(levels),
		Levels:       make([]*LevelProgress, 0, len(levels)),
	}
	for i, info := range levels {
		lp := &LevelProgress{LevelInfo: info, Unlocked: i <= sess.CurrentLevel}
		if report, ok := sess.Reports[info.ID]; ok && report != nil {
			lp.Attempted = true
			lp.Passed = report.Passed
			lp.Message = report.Message
		}
		if lp.Passed {
			progress.Passed++
		}
		progress.Levels = append(progress.Levels, lp)
	}

	return progress, nil
}

// ListLevels returns the levels in play order
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	return s.levels.ListLevels()
}

// GetLevel loads a level definition
func (s *gameServiceImpl) GetLevel(ctx context.Context, levelID string) (*engine.LevelConfig, error) {
	return s.levels.LoadLevel(levelID)
}

// SaveLevel validates and stores a level definition
func (s *gameServiceImpl) SaveLevel(ctx context.Context, levelID string, level *engine.LevelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels.SaveLevel(levelID, level)
}

// Instrument returns code with every loop guarded
func (s *gameServiceImpl) Instrument(ctx context.Context, code string) (string, error) {
	return s.compiler.Instrument(code)
}
