package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"JS Hero",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`JS Hero - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Write a JavaScript function named solution(player) that walks the hero (p)
next to the princess (w) on every level. Levels unlock one after another.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions / delete_session
- submit_code: store a solution and replay every unlocked level
- run_level: replay one unlocked level
- get_progress: which levels are unlocked and passed
- list_levels / describe_level: the level catalogue and its boards
- instrument_code: see how loops are guarded
- player_api: the player methods available to a solution

Read player_api before writing your first solution.`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new learner session with only the first level unlocked",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session including its submitted code",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session and its progress",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Playing
	c.mcpServer.AddTool(mcp.NewTool("submit_code",
		mcp.WithDescription("Submit a solution. Every unlocked level is replayed and passing levels unlock the next one."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("code", mcp.Required(), mcp.Description("JavaScript source defining function solution(player)")),
	), c.handleSubmitCode)

	c.mcpServer.AddTool(mcp.NewTool("run_level",
		mcp.WithDescription("Replay the submitted solution on one unlocked level and show the move log"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("level_id", mcp.Required(), mcp.Description("Level ID from list_levels")),
	), c.handleRunLevel)

	c.mcpServer.AddTool(mcp.NewTool("get_progress",
		mcp.WithDescription("Show which levels are unlocked, attempted and passed"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), c.handleGetProgress)

	// Levels
	c.mcpServer.AddTool(mcp.NewTool("list_levels",
		mcp.WithDescription("List levels in play order"),
	), c.handleListLevels)

	c.mcpServer.AddTool(mcp.NewTool("describe_level",
		mcp.WithDescription("Show a level board with coordinates and a legend"),
		mcp.WithString("level_id", mcp.Required(), mcp.Description("Level ID from list_levels")),
	), c.handleDescribeLevel)

	// Tooling
	c.mcpServer.AddTool(mcp.NewTool("instrument_code",
		mcp.WithDescription("Return the code as it is executed, with every loop guarded against running forever"),
		mcp.WithString("code", mcp.Required(), mcp.Description("JavaScript source")),
	), c.handleInstrumentCode)

	c.mcpServer.AddTool(mcp.NewTool("player_api",
		mcp.WithDescription("Describe the player object handed to solution(player)"),
	), c.handlePlayerAPI)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nNext: call player_api, then submit_code with session_id %q.\n", session.ID, session.ID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (level %d, completed: %t, last used: %s)\n",
			s.ID, s.CurrentLevel+1, s.Completed, s.LastAccessedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+url.PathEscape(sessionID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s deleted", sessionID)), nil
}

func (c *Client) handleSubmitCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.SubmitResult
	path := fmt.Sprintf("/api/sessions/%s/code", url.PathEscape(sessionID))
	if err := c.apiCall(ctx, "PUT", path, map[string]string{"code": code}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSubmitResult(&result)), nil
}

func (c *Client) handleRunLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	levelID, err := request.RequireString("level_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var report service.RunReport
	path := fmt.Sprintf("/api/sessions/%s/levels/%s/run", url.PathEscape(sessionID), url.PathEscape(levelID))
	if err := c.apiCall(ctx, "POST", path, nil, &report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunReport(&report, true)), nil
}

func (c *Client) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var progress service.ProgressInfo
	path := fmt.Sprintf("/api/sessions/%s/progress", url.PathEscape(sessionID))
	if err := c.apiCall(ctx, "GET", path, nil, &progress); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatProgress(&progress)), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []*service.LevelInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Levels (%d):\n\n", len(levels))
	for _, l := range levels {
		fmt.Fprintf(&b, "%d. %s [%s] %dx%d, %d monsters, %d rocks\n",
			l.Index+1, l.Name, l.ID, l.Width, l.Height, l.Monsters, l.Rocks)
		if l.Description != "" {
			fmt.Fprintf(&b, "   %s\n", l.Description)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleDescribeLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levelID, err := request.RequireString("level_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var level engine.LevelConfig
	if err := c.apiCall(ctx, "GET", "/api/levels/"+url.PathEscape(levelID), nil, &level); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLevel(&level)), nil
}

func (c *Client) handleInstrumentCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Code string `json:"code"`
	}
	if err := c.apiCall(ctx, "POST", "/api/instrument", map[string]string{"code": code}, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Code), nil
}

func (c *Client) handlePlayerAPI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(playerAPI), nil
}

const playerAPI = `JS Hero - Player API

Your code must define a function named solution. It is called once per level
with a player object:

    function solution(player) {
      while (!player.isNextToTarget()) {
        player.step();
      }
    }

The level is cleared when the function returns with the hero next to the
princess (w). The hero starts facing SOUTH.

ACTIONS (each one is an animation step):
- player.step()       move one cell forward
- player.turnLeft()   turn 90 degrees counter-clockwise
- player.turnRight()  turn 90 degrees clockwise
- player.attack()     attack the cell in front, killing a monster there

SENSES (free, not animated):
- player.check("LEFT" | "RIGHT" | "STEP")  what is left, right or in front
- player.checkMap(x, y)                    what is at a board cell
  Both return "NOTHING", "ROCK", "MONSTER", "TARGET", "PLAYER" or "ERROR"
  ("ERROR" means outside the board or an unknown side).
- player.isNextToTarget()                  true when the princess is adjacent

PROPERTIES (read-only):
- player.x, player.y                 current position (x right, y down)
- player.direction                   "NORTH", "SOUTH", "EAST" or "WEST"
- player.target_x, player.target_y   position of the princess

RULES:
- Stepping into a rock, the princess or off the board fails the level.
- Any monster next to you before a step or after an attack kills you.
- Loops that run too long are stopped with "Possible infinite loop detected".
- Once the level has failed, further actions do nothing.`

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Unlocked level: %d\n", session.CurrentLevel+1)
	fmt.Fprintf(&b, "Completed: %t\n", session.Completed)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format(time.RFC3339))
	if session.CodeError != "" {
		fmt.Fprintf(&b, "Code error: %s\n", session.CodeError)
	}
	if session.Code != "" {
		fmt.Fprintf(&b, "\nCode:\n%s\n", session.Code)
	}
	return b.String()
}

func formatSubmitResult(result *service.SubmitResult) string {
	var b strings.Builder

	if !result.Accepted {
		b.WriteString("✗ Code rejected\n")
		fmt.Fprintf(&b, "Error: %s\n", result.CodeError)
		if result.ErrorLine > 0 {
			fmt.Fprintf(&b, "At line %d, column %d\n", result.ErrorLine, result.ErrorColumn)
		}
		return b.String()
	}

	b.WriteString("✓ Code accepted\n\n")
	for _, report := range result.Reports {
		b.WriteString(formatRunReport(report, false))
	}

	if len(result.Unlocked) > 0 {
		fmt.Fprintf(&b, "\nUnlocked: %s\n", strings.Join(result.Unlocked, ", "))
	}
	if result.Completed {
		b.WriteString("\n🎉 Every level passed!\n")
	} else {
		fmt.Fprintf(&b, "\nCurrent level: %d\n", result.CurrentLevel+1)
	}
	return b.String()
}

func formatRunReport(report *service.RunReport, withMoves bool) string {
	var b strings.Builder

	status := "✗ FAILED"
	if report.Passed {
		status = "✓ PASSED"
	}
	fmt.Fprintf(&b, "%s %s [%s] in %d steps", status, report.Name, report.LevelID, len(report.Moves))
	if report.Message != "" {
		fmt.Fprintf(&b, ": %s", report.Message)
	}
	b.WriteString("\n")

	if withMoves {
		b.WriteString("\nMove log:\n")
		b.WriteString(formatMoves(report.Moves))
	}
	return b.String()
}

func formatMoves(moves []engine.Batch) string {
	var b strings.Builder
	for i, batch := range moves {
		parts := make([]string, len(batch))
		for j, m := range batch {
			parts[j] = fmt.Sprintf("%s:%s", m.ID, m.Action)
		}
		fmt.Fprintf(&b, "%3d. %s\n", i+1, strings.Join(parts, " "))
	}
	return b.String()
}

func formatProgress(progress *service.ProgressInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: %d/%d levels passed\n\n", progress.SessionID, progress.Passed, progress.Total)

	for _, l := range progress.Levels {
		mark := "🔒"
		switch {
		case l.Passed:
			mark = "✓"
		case l.Attempted:
			mark = "✗"
		case l.Unlocked:
			mark = "·"
		}
		fmt.Fprintf(&b, "%s %d. %s [%s]", mark, l.Index+1, l.Name, l.ID)
		if l.Message != "" && !l.Passed {
			fmt.Fprintf(&b, " - %s", l.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatLevel draws the board one character per cell with axis labels
func formatLevel(level *engine.LevelConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", level.Name, level.ID)
	if level.Description != "" {
		fmt.Fprintf(&b, "%s\n", level.Description)
	}
	b.WriteString("\n")

	grid := level.Level()
	b.WriteString("    ")
	for x := 0; x < grid.Width(); x++ {
		fmt.Fprintf(&b, "%d", x%10)
	}
	b.WriteString("\n")

	for y := 0; y < grid.Height(); y++ {
		fmt.Fprintf(&b, "%3d ", y)
		for x := 0; x < grid.Width(); x++ {
			cell, _ := grid.At(x, y)
			b.WriteString(cellChar(cell))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nLegend: p=hero (starts facing SOUTH), w=princess, m=monster, r=rock, .=empty\n")
	if targets := grid.Find(engine.KindTarget); len(targets) == 1 {
		fmt.Fprintf(&b, "Princess at (%d,%d)\n", targets[0].X, targets[0].Y)
	}
	return b.String()
}

func cellChar(cell engine.Cell) string {
	switch cell.Kind {
	case engine.KindPlayer:
		return "p"
	case engine.KindTarget:
		return "w"
	case engine.KindMonster:
		return "m"
	case engine.KindRock:
		return "r"
	case engine.KindNothing:
		return "."
	}
	return "?"
}
