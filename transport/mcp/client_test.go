package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/service"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "ab12", "current_level": 2})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response service.SessionInfo
	if err := client.apiCall(context.Background(), "GET", "/api/sessions/ab12", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response.ID != "ab12" || response.CurrentLevel != 2 {
		t.Errorf("Unexpected response: %+v", response)
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")
		if err := client.apiCall(context.Background(), "GET", "/api/health", nil, nil); err == nil {
			t.Error("Expected error for unreachable server")
		}
	})

	t.Run("plain status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api/health", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "API error: 500") {
			t.Errorf("Expected 'API error: 500', got %v", err)
		}
	})

	t.Run("json error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "level is locked: gauntlet"})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "POST", "/api/x", nil, nil)
		if err == nil || err.Error() != "level is locked: gauntlet" {
			t.Errorf("Expected the API message, got %v", err)
		}
	})
}

func TestClient_handleCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "test-session-123"})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleCreateSession(context.Background(), callRequest("create_session", map[string]any{}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "test-session-123") {
		t.Errorf("Expected session ID in result, got: %s", text)
	}
}

func TestClient_handleSubmitCode(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/api/sessions/ab12/code" {
			t.Errorf("Expected PUT /api/sessions/ab12/code, got %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)

		json.NewEncoder(w).Encode(service.SubmitResult{
			SessionID: "ab12",
			Accepted:  true,
			Reports: []*service.RunReport{
				{LevelID: "first-steps", Name: "First Steps", Passed: true, Moves: make([]engine.Batch, 3)},
				{LevelID: "turn-around", Name: "Turn Around", Message: "Moving to a place you cannot", Moves: make([]engine.Batch, 4)},
			},
			CurrentLevel: 1,
			Unlocked:     []string{"turn-around"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	code := "function solution(p) { p.step(); }"

	result, err := client.handleSubmitCode(context.Background(), callRequest("submit_code", map[string]any{
		"session_id": "ab12",
		"code":       code,
	}))
	if err != nil {
		t.Fatalf("submitCode failed: %v", err)
	}
	if gotBody["code"] != code {
		t.Errorf("Expected code to be forwarded, got %q", gotBody["code"])
	}

	text := resultText(t, result)
	for _, want := range []string{
		"✓ Code accepted",
		"✓ PASSED First Steps [first-steps] in 3 steps",
		"✗ FAILED Turn Around [turn-around] in 4 steps: Moving to a place you cannot",
		"Unlocked: turn-around",
		"Current level: 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}

	t.Run("missing code", func(t *testing.T) {
		result, _ := client.handleSubmitCode(context.Background(), callRequest("submit_code", map[string]any{"session_id": "ab12"}))
		if !result.IsError {
			t.Error("Expected a tool error without code")
		}
	})
}

func TestFormatSubmitResult_Rejected(t *testing.T) {
	text := formatSubmitResult(&service.SubmitResult{
		CodeError:   "SyntaxError: Unexpected token (line 2, column 3)",
		ErrorLine:   2,
		ErrorColumn: 3,
	})

	if !strings.Contains(text, "✗ Code rejected") || !strings.Contains(text, "At line 2, column 3") {
		t.Errorf("Unexpected rejection text: %s", text)
	}
}

func TestClient_handleRunLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/ab12/levels/first-steps/run" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(service.RunReport{
			LevelID: "first-steps",
			Name:    "First Steps",
			Passed:  true,
			Success: true,
			Moves: []engine.Batch{
				{{ID: "p", Action: engine.ActionStep}},
				{{ID: "p", Action: engine.ActionWin}, {ID: "w", Action: engine.ActionWin}},
			},
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleRunLevel(context.Background(), callRequest("run_level", map[string]any{
		"session_id": "ab12",
		"level_id":   "first-steps",
	}))
	if err != nil {
		t.Fatalf("runLevel failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "  1. p:step") || !strings.Contains(text, "  2. p:win w:win") {
		t.Errorf("Expected the move log, got: %s", text)
	}
}

func TestFormatProgress(t *testing.T) {
	text := formatProgress(&service.ProgressInfo{
		SessionID: "ab12",
		Passed:    1,
		Total:     3,
		Levels: []*service.LevelProgress{
			{LevelInfo: &service.LevelInfo{ID: "a", Index: 0, Name: "A"}, Unlocked: true, Attempted: true, Passed: true},
			{LevelInfo: &service.LevelInfo{ID: "b", Index: 1, Name: "B"}, Unlocked: true, Attempted: true, Message: "Monster killed you!"},
			{LevelInfo: &service.LevelInfo{ID: "c", Index: 2, Name: "C"}},
		},
	})

	for _, want := range []string{
		"Session ab12: 1/3 levels passed",
		"✓ 1. A [a]",
		"✗ 2. B [b] - Monster killed you!",
		"🔒 3. C [c]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in progress, got: %s", want, text)
		}
	}
}

func TestFormatLevel(t *testing.T) {
	text := formatLevel(engine.DefaultLevels()[3])

	for _, want := range []string{
		"Orc Guard [orc-guard]",
		"    01234",
		"  0 ..p..",
		"  3 ..m..",
		"  5 ..w..",
		"Princess at (2,5)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in board, got:\n%s", want, text)
		}
	}
}

func TestClient_handlePlayerAPI(t *testing.T) {
	result, err := NewClient("http://localhost:8080").handlePlayerAPI(context.Background(), callRequest("player_api", nil))
	if err != nil {
		t.Fatalf("handlePlayerAPI failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"function solution(player)", "player.step()", "player.checkMap(x, y)", "player.target_x"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in player API, got: %s", want, text)
		}
	}
}
