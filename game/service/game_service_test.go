package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/script"
	"github.com/wricardo/jshero/game/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id string) (*service.Session, error) {
	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	session := service.NewSession(id)
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return errors.New("session not found")
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	m.saves++
	return nil
}

// MockLevelManager implements service.LevelManager for testing
type MockLevelManager struct {
	levels []*engine.LevelConfig
}

func NewMockLevelManager(levels ...*engine.LevelConfig) *MockLevelManager {
	if len(levels) == 0 {
		levels = []*engine.LevelConfig{walkDown(), turnUp(), guarded()}
	}
	return &MockLevelManager{levels: levels}
}

func (m *MockLevelManager) LoadLevel(id string) (*engine.LevelConfig, error) {
	for _, level := range m.levels {
		if level.ID == id {
			return level, nil
		}
	}
	return nil, errors.New("level not found")
}

func (m *MockLevelManager) Levels() ([]*engine.LevelConfig, error) {
	return m.levels, nil
}

func (m *MockLevelManager) ListLevels() ([]*service.LevelInfo, error) {
	result := make([]*service.LevelInfo, 0, len(m.levels))
	for i, level := range m.levels {
		result = append(result, service.NewLevelInfo(i, level))
	}
	return result, nil
}

func (m *MockLevelManager) SaveLevel(id string, level *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(level); err != nil {
		return err
	}
	saved := *level
	saved.ID = id
	m.levels = append(m.levels, &saved)
	return nil
}

func walkDown() *engine.LevelConfig {
	return &engine.LevelConfig{ID: "walk-down", Name: "Walk Down", Order: 1, Design: [][]string{
		{"-", "p", "-"},
		{"-", "-", "-"},
		{"-", "w", "-"},
	}}
}

func turnUp() *engine.LevelConfig {
	return &engine.LevelConfig{ID: "turn-up", Name: "Turn Up", Order: 2, Design: [][]string{
		{"-", "w", "-"},
		{"-", "-", "-"},
		{"-", "p", "-"},
	}}
}

func guarded() *engine.LevelConfig {
	return &engine.LevelConfig{ID: "guarded", Name: "Guarded", Order: 3, Design: [][]string{
		{"p", "-", "-"},
		{"m1", "-", "-"},
		{"-", "-", "w"},
	}}
}

// passes walk-down only
const stepOnce = `function solution(p) { p.step(); }`

// passes walk-down and turn-up, dies next to the monster
const walkToTarget = `
function solution(p) {
  if (p.target_y < p.y) { p.turnLeft(); p.turnLeft(); }
  while (!p.isNextToTarget()) { p.step(); }
}`

func newTestService(levels ...*engine.LevelConfig) (service.GameService, *MockSessionManager) {
	sessions := NewMockSessionManager()
	svc := service.NewGameService(sessions, NewMockLevelManager(levels...), script.NewRunner())
	return svc, sessions
}

func createSession(t *testing.T, svc service.GameService) string {
	t.Helper()
	info, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return info.ID
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService()

	info, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if info.ID == "" {
		t.Error("Expected a session ID")
	}
	if info.CurrentLevel != 0 || info.Completed {
		t.Errorf("Expected a fresh session on level 0, got %+v", info)
	}
}

func TestGameService_GetListDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	id := createSession(t, svc)
	createSession(t, svc)

	if _, err := svc.GetSession(ctx, id); err != nil {
		t.Errorf("GetSession() error = %v", err)
	}
	if _, err := svc.GetSession(ctx, "nope"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(sessions))
	}

	if err := svc.DeleteSession(ctx, id); err != nil {
		t.Errorf("DeleteSession() error = %v", err)
	}
	if err := svc.DeleteSession(ctx, id); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestGameService_SubmitCodeProgression(t *testing.T) {
	ctx := context.Background()
	svc, sessions := newTestService()
	id := createSession(t, svc)

	result, err := svc.SubmitCode(ctx, id, stepOnce)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !result.Accepted {
		t.Fatalf("Expected code to be accepted, got error '%s'", result.CodeError)
	}
	if result.CurrentLevel != 1 {
		t.Errorf("Expected current level 1, got %d", result.CurrentLevel)
	}
	if diff := cmp.Diff([]string{"turn-up"}, result.Unlocked); diff != "" {
		t.Errorf("Unexpected unlocked levels (-want +got):\n%s", diff)
	}
	if len(result.Reports) != 2 {
		t.Fatalf("Expected the first two levels to run, got %d reports", len(result.Reports))
	}
	if !result.Reports[0].Passed || result.Reports[1].Passed {
		t.Errorf("Expected walk-down to pass and turn-up to fail, got %v and %v", result.Reports[0].Passed, result.Reports[1].Passed)
	}
	if result.Reports[1].Message != "Moving to a place you cannot" {
		t.Errorf("Expected invalid move on turn-up, got '%s'", result.Reports[1].Message)
	}

	result, err = svc.SubmitCode(ctx, id, walkToTarget)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if result.CurrentLevel != 2 {
		t.Errorf("Expected current level 2, got %d", result.CurrentLevel)
	}
	if diff := cmp.Diff([]string{"guarded"}, result.Unlocked); diff != "" {
		t.Errorf("Unexpected unlocked levels (-want +got):\n%s", diff)
	}
	last := result.Reports[2]
	if last.Passed || last.Message != "Monster killed you!" {
		t.Errorf("Expected the monster to win on guarded, got passed=%v message='%s'", last.Passed, last.Message)
	}
	if result.Completed {
		t.Error("Expected progression not to be complete")
	}

	if sessions.saves < 2 {
		t.Errorf("Expected each submission to be saved, got %d saves", sessions.saves)
	}
}

func TestGameService_SubmitCodeNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	id := createSession(t, svc)

	if _, err := svc.SubmitCode(ctx, id, walkToTarget); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	result, err := svc.SubmitCode(ctx, id, `function solution(p) {}`)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	if result.CurrentLevel != 2 {
		t.Errorf("Expected progress to stay at 2, got %d", result.CurrentLevel)
	}
	for _, report := range result.Reports {
		if report.Passed {
			t.Errorf("Expected idle solution to fail %s", report.LevelID)
		}
	}
}

func TestGameService_SubmitCodeCompletes(t *testing.T) {
	svc, _ := newTestService(walkDown(), turnUp())
	id := createSession(t, svc)

	result, err := svc.SubmitCode(context.Background(), id, walkToTarget)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !result.Completed || result.CurrentLevel != 2 {
		t.Errorf("Expected every level passed, got %+v", result)
	}
}

func TestGameService_SubmitCodeErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	id := createSession(t, svc)

	tests := []struct {
		name    string
		code    string
		wantErr string
		line    bool
	}{
		{"syntax error", "function solution(p) {\n  p.step(\n}", "SyntaxError", true},
		{"missing solution", "function solve(p) {}", "Solution function not defined", false},
		{"throws at load", `throw new Error("nope")`, "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.SubmitCode(ctx, id, tt.code)
			if err != nil {
				t.Fatalf("SubmitCode() error = %v", err)
			}
			if result.Accepted {
				t.Fatal("Expected code to be rejected")
			}
			if !strings.Contains(result.CodeError, tt.wantErr) {
				t.Errorf("Expected code error containing '%s', got '%s'", tt.wantErr, result.CodeError)
			}
			if tt.line && result.ErrorLine == 0 {
				t.Error("Expected a line number for the syntax error")
			}
			if len(result.Reports) != 0 {
				t.Errorf("Expected no levels to run, got %d", len(result.Reports))
			}

			info, _ := svc.GetSession(ctx, id)
			if info.Code != tt.code || info.CodeError == "" {
				t.Errorf("Expected session to keep the code and its error, got %+v", info)
			}
		})
	}

	if _, err := svc.SubmitCode(ctx, "nope", stepOnce); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestGameService_RunLevel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	id := createSession(t, svc)

	if _, err := svc.RunLevel(ctx, id, "walk-down"); !errors.Is(err, service.ErrNoSolution) {
		t.Errorf("Expected ErrNoSolution before any code, got %v", err)
	}

	if _, err := svc.SubmitCode(ctx, id, stepOnce); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	report, err := svc.RunLevel(ctx, id, "walk-down")
	if err != nil {
		t.Fatalf("RunLevel() error = %v", err)
	}
	want := []engine.Batch{
		{{ID: "p", Action: engine.ActionStep}},
		{{ID: "p", Action: engine.ActionWin}, {ID: "w", Action: engine.ActionWin}},
	}
	if diff := cmp.Diff(want, report.Moves); diff != "" {
		t.Errorf("Unexpected move log (-want +got):\n%s", diff)
	}
	if !report.Passed || !report.Success || report.LevelID != "walk-down" || report.Index != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}

	if _, err := svc.RunLevel(ctx, id, "guarded"); !errors.Is(err, service.ErrLevelLocked) {
		t.Errorf("Expected ErrLevelLocked, got %v", err)
	}
	if _, err := svc.RunLevel(ctx, id, "missing"); !errors.Is(err, service.ErrLevelNotFound) {
		t.Errorf("Expected ErrLevelNotFound, got %v", err)
	}

	if _, err := svc.SubmitCode(ctx, id, "function solution("); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if _, err := svc.RunLevel(ctx, id, "walk-down"); !errors.Is(err, service.ErrNoSolution) {
		t.Errorf("Expected ErrNoSolution after broken code, got %v", err)
	}
}

func TestGameService_BrokenLevelFailsReport(t *testing.T) {
	ctx := context.Background()
	noPlayer := &engine.LevelConfig{ID: "no-player", Name: "No Player", Order: 2, Design: [][]string{
		{"-", "-"},
		{"-", "w"},
	}}
	svc, _ := newTestService(walkDown(), noPlayer)
	id := createSession(t, svc)

	result, err := svc.SubmitCode(ctx, id, stepOnce)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if len(result.Reports) != 2 {
		t.Fatalf("Expected both levels to run, got %d reports", len(result.Reports))
	}

	report := result.Reports[1]
	if report.Passed || report.Success || len(report.Moves) != 0 {
		t.Errorf("Expected an empty failed report, got %+v", report)
	}
	if report.Message != engine.ErrConfiguration.Message {
		t.Errorf("Expected configuration message, got '%s'", report.Message)
	}
	if !result.Reports[0].Passed {
		t.Errorf("Expected walk-down to pass, got '%s'", result.Reports[0].Message)
	}
}

func TestGameService_GetProgress(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	id := createSession(t, svc)

	if _, err := svc.SubmitCode(ctx, id, stepOnce); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	progress, err := svc.GetProgress(ctx, id)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if progress.Total != 3 || progress.Passed != 1 || progress.CurrentLevel != 1 {
		t.Errorf("Unexpected progress summary: %+v", progress)
	}

	type row struct {
		ID                          string
		Unlocked, Attempted, Passed bool
	}
	var got []row
	for _, level := range progress.Levels {
		got = append(got, row{level.ID, level.Unlocked, level.Attempted, level.Passed})
	}
	want := []row{
		{"walk-down", true, true, true},
		{"turn-up", true, true, false},
		{"guarded", false, false, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected level progress (-want +got):\n%s", diff)
	}
}

func TestGameService_Levels(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	levels, err := svc.ListLevels(ctx)
	if err != nil {
		t.Fatalf("ListLevels() error = %v", err)
	}
	if len(levels) != 3 || levels[2].Monsters != 1 || levels[0].Width != 3 {
		t.Errorf("Unexpected level list: %+v", levels)
	}

	level, err := svc.GetLevel(ctx, "turn-up")
	if err != nil || level.Name != "Turn Up" {
		t.Errorf("GetLevel() = %+v, %v", level, err)
	}

	custom := &engine.LevelConfig{Name: "Custom", Design: [][]string{{"p", "-"}, {"-", "w"}}}
	if err := svc.SaveLevel(ctx, "custom", custom); err != nil {
		t.Errorf("SaveLevel() error = %v", err)
	}
	if _, err := svc.GetLevel(ctx, "custom"); err != nil {
		t.Errorf("Expected saved level to load, got %v", err)
	}
}

func TestGameService_Instrument(t *testing.T) {
	svc, _ := newTestService()

	out, err := svc.Instrument(context.Background(), "while (true) {}")
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}
	if !strings.Contains(out, script.DefaultLoopMessage) {
		t.Errorf("Expected guarded loop, got %s", out)
	}
}
