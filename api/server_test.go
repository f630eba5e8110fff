package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gorillaws "github.com/gorilla/websocket"

	"github.com/wricardo/jshero/game/config"
	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/script"
	"github.com/wricardo/jshero/game/service"
	"github.com/wricardo/jshero/game/session"
	"github.com/wricardo/jshero/transport/websocket"
)

// walks south until the princess is adjacent; clears first-steps only
const walkDown = `function solution(p) {
  while (!p.isNextToTarget()) {
    p.step();
  }
}`

type testEnv struct {
	server *Server
	hub    *websocket.Hub
	levels string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	levelsDir := t.TempDir()
	levels, err := config.NewManager(levelsDir)
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	runner := script.NewRunner(script.WithTimeout(time.Second))
	gameService := service.NewGameService(session.NewManager(), levels, runner)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	return &testEnv{
		server: NewServer(gameService, hub),
		hub:    hub,
		levels: levelsDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, "POST", "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	return info.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["status"]; got != "healthy" {
		t.Errorf("Expected healthy, got %q", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	t.Run("get", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions/"+id, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		info := decode[service.SessionInfo](t, w)
		if info.ID != id || info.CurrentLevel != 0 || info.Completed {
			t.Errorf("Unexpected session: %+v", info)
		}
	})

	t.Run("list", func(t *testing.T) {
		env.createSession(t)
		w := env.do(t, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var body struct {
			Count    int                    `json:"count"`
			Total    int                    `json:"total"`
			Sessions []*service.SessionInfo `json:"sessions"`
			Order    string                 `json:"order"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode list: %v", err)
		}
		if body.Count != 1 || body.Total != 2 || body.Order != "asc" {
			t.Errorf("Unexpected listing: %+v", body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if w := env.do(t, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if w := env.do(t, "GET", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 after delete, got %d", w.Code)
		}
		if w := env.do(t, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 on second delete, got %d", w.Code)
		}
	})
}

func TestSubmitCode(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	t.Run("progress through the first level", func(t *testing.T) {
		w := env.do(t, "PUT", "/api/sessions/"+id+"/code", map[string]string{"code": walkDown})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		result := decode[service.SubmitResult](t, w)
		if !result.Accepted {
			t.Fatalf("Expected code to be accepted: %+v", result)
		}
		if result.CurrentLevel != 1 {
			t.Errorf("Expected level 1 unlocked, got %d", result.CurrentLevel)
		}
		if diff := cmp.Diff([]string{"turn-around"}, result.Unlocked); diff != "" {
			t.Errorf("Unexpected unlocked levels (-want +got):\n%s", diff)
		}
		if len(result.Reports) == 0 || !result.Reports[0].Passed {
			t.Errorf("Expected the first report to pass: %+v", result.Reports)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		w := env.do(t, "PUT", "/api/sessions/"+id+"/code", map[string]string{"code": "function solution(p) {\n  p.step(\n}"})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		result := decode[service.SubmitResult](t, w)
		if result.Accepted || result.CodeError == "" || result.ErrorLine == 0 {
			t.Errorf("Expected a located code error, got %+v", result)
		}
		if result.CurrentLevel != 1 {
			t.Errorf("Expected progress to be kept, got %d", result.CurrentLevel)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		if w := env.do(t, "PUT", "/api/sessions/"+id+"/code", "{not json"); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		w := env.do(t, "PUT", "/api/sessions/nope/code", map[string]string{"code": walkDown})
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestRunLevel(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	if w := env.do(t, "POST", "/api/sessions/"+id+"/levels/first-steps/run", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 without code, got %d", w.Code)
	}

	env.do(t, "PUT", "/api/sessions/"+id+"/code", map[string]string{"code": walkDown})

	t.Run("unlocked level", func(t *testing.T) {
		w := env.do(t, "POST", "/api/sessions/"+id+"/levels/first-steps/run", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		report := decode[service.RunReport](t, w)
		if !report.Passed || !report.Success {
			t.Errorf("Expected a passing run, got %+v", report)
		}
		last := report.Moves[len(report.Moves)-1]
		if last[0].Action != engine.ActionWin {
			t.Errorf("Expected the log to end on a win, got %v", last)
		}
	})

	t.Run("failing level", func(t *testing.T) {
		w := env.do(t, "POST", "/api/sessions/"+id+"/levels/turn-around/run", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		report := decode[service.RunReport](t, w)
		if report.Passed || report.Message != engine.ErrInvalidMove.Message {
			t.Errorf("Expected an invalid move, got %+v", report)
		}
	})

	t.Run("locked level", func(t *testing.T) {
		if w := env.do(t, "POST", "/api/sessions/"+id+"/levels/gauntlet/run", nil); w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		if w := env.do(t, "POST", "/api/sessions/"+id+"/levels/missing/run", nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("progress", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions/"+id+"/progress", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		progress := decode[service.ProgressInfo](t, w)
		if progress.Passed != 1 || progress.Total != len(engine.DefaultLevels()) {
			t.Errorf("Unexpected progress: %+v", progress)
		}
		if !progress.Levels[1].Unlocked || !progress.Levels[1].Attempted || progress.Levels[1].Passed {
			t.Errorf("Unexpected turn-around row: %+v", progress.Levels[1])
		}
		if progress.Levels[2].Unlocked {
			t.Errorf("Expected rock-road to stay locked")
		}
	})
}

func TestLevels(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list built-in", func(t *testing.T) {
		w := env.do(t, "GET", "/api/levels", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		levels := decode[[]*service.LevelInfo](t, w)
		if len(levels) != len(engine.DefaultLevels()) || levels[0].ID != "first-steps" {
			t.Errorf("Unexpected levels: %+v", levels)
		}
	})

	t.Run("get", func(t *testing.T) {
		w := env.do(t, "GET", "/api/levels/orc-guard", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		level := decode[engine.LevelConfig](t, w)
		if level.Name != "Orc Guard" || len(level.Design) == 0 {
			t.Errorf("Unexpected level: %+v", level)
		}
		if w := env.do(t, "GET", "/api/levels/missing", nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("create", func(t *testing.T) {
		level := engine.LevelConfig{
			ID:     "corridor",
			Name:   "Corridor",
			Order:  1,
			Design: [][]string{{"p", "-", "w"}, {"-", "-", "-"}},
		}
		w := env.do(t, "POST", "/api/levels", level)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		w = env.do(t, "GET", "/api/levels/corridor", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected saved level to load, got %d", w.Code)
		}
	})

	t.Run("create invalid", func(t *testing.T) {
		noPlayer := engine.LevelConfig{ID: "broken", Name: "Broken", Design: [][]string{{"-", "-", "w"}}}
		if w := env.do(t, "POST", "/api/levels", noPlayer); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		if w := env.do(t, "POST", "/api/levels", engine.LevelConfig{Name: "No id"}); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 without id, got %d", w.Code)
		}
	})
}

func TestInstrument(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/instrument", map[string]string{"code": "while (true) {}"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	code := decode[map[string]string](t, w)["code"]
	if !strings.Contains(code, "_LP0") || !strings.Contains(code, "Possible infinite loop detected") {
		t.Errorf("Expected a guarded loop, got %q", code)
	}

	if w := env.do(t, "POST", "/api/instrument", map[string]string{"code": "while ("}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a syntax error, got %d", w.Code)
	}
}

func TestWebSocketRunResults(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	server := httptest.NewServer(env.server)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	if _, resp, err := gorillaws.DefaultDialer.Dial(wsURL+"?session=nope", nil); err == nil {
		t.Error("Expected unknown session to be rejected")
	} else if resp != nil && resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL+"?session="+id, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for env.hub.ClientCount(id) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	submitted := decode[service.SubmitResult](t, env.do(t, "PUT", "/api/sessions/"+id+"/code", map[string]string{"code": walkDown}))
	w := env.do(t, "POST", "/api/sessions/"+id+"/levels/first-steps/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// the submission event, one report per level it ran, then the single run
	want := []string{websocket.EventSubmitted}
	for range len(submitted.Reports) + 1 {
		want = append(want, websocket.EventRunResult)
	}

	for i, event := range want {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read message %d of %d: %v", i+1, len(want), err)
		}
		var message websocket.Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		if message.Event != event {
			t.Fatalf("Message %d: expected event %q, got %q", i+1, event, message.Event)
		}
		if event == websocket.EventRunResult && (message.Report == nil || message.Report.SessionID != id) {
			t.Errorf("Unexpected report: %+v", message.Report)
		}
	}
}
