// Command submit plays JS Hero through a running server's REST API. It
// resumes (or creates) a session, submits each given script in turn and
// stops as soon as every level is passed.
//
//	submit --url http://localhost:8080 solutions/walk_down.js solutions/pathfinder.js
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/jshero/game/render"
	"github.com/wricardo/jshero/game/service"
)

// ErrIncomplete is returned when no script got through every level
var ErrIncomplete = errors.New("levels remain locked or failed")

// Client talks to the JS Hero REST API on behalf of one session
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends a JSON request and decodes a JSON response into result
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

// Resume attaches the client to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID, nil, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) SubmitCode(ctx context.Context, code string) (*service.SubmitResult, error) {
	var result service.SubmitResult
	path := fmt.Sprintf("/api/sessions/%s/code", c.sessionID)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"code": code}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Progress(ctx context.Context) (*service.ProgressInfo, error) {
	var progress service.ProgressInfo
	path := fmt.Sprintf("/api/sessions/%s/progress", c.sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// openSession resumes sessionID when given, falling back to a new session
func openSession(ctx context.Context, c *Client, sessionID string, logger *log.Logger) error {
	if sessionID != "" {
		info, err := c.Resume(ctx, sessionID)
		if err == nil {
			logger.Info("🔄 resumed session", "session", info.ID, "level", info.CurrentLevel+1)
			return nil
		}
		logger.Warn("failed to resume session (may be expired), creating a new one", "err", err)
	}

	info, err := c.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info("✨ session created", "session", info.ID)
	return nil
}

// play submits scripts in order until the session clears every level
func play(ctx context.Context, c *Client, scripts []string, out io.Writer, logger *log.Logger) error {
	for i, path := range scripts {
		code, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}

		logger.Info("submitting", "attempt", i+1, "script", path)
		result, err := c.SubmitCode(ctx, string(code))
		if err != nil {
			return err
		}

		if !result.Accepted {
			fmt.Fprintf(out, "✗ %s rejected: %s\n", path, result.CodeError)
			continue
		}
		for _, report := range result.Reports {
			fmt.Fprintf(out, "%-14s %s\n", report.LevelID, render.Outcome(report.Passed, report.Message, len(report.Moves)))
		}
		if len(result.Unlocked) > 0 {
			fmt.Fprintf(out, "Unlocked: %s\n", strings.Join(result.Unlocked, ", "))
		}
		if result.Completed {
			fmt.Fprintf(out, "🎉 Every level passed with %s\n", path)
			return nil
		}
	}

	progress, err := c.Progress(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d/%d levels passed\n", progress.Passed, progress.Total)
	return ErrIncomplete
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Play JS Hero through the REST API",
		ArgsUsage: "<script.js>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("JSHERO_URL")},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.StringFlag{Name: "session-file", Value: ".session", Usage: "File remembering the session between runs"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return errors.New("at least one script is required")
			}

			logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "submit"})
			client := NewClient(cmd.String("url"))
			logger.Info("connecting to game server", "url", cmd.String("url"))

			sessionFile := cmd.String("session-file")
			sessionID := cmd.String("continue")
			if sessionID == "" {
				if data, err := os.ReadFile(sessionFile); err == nil {
					sessionID = string(bytes.TrimSpace(data))
				}
			}

			if err := openSession(ctx, client, sessionID, logger); err != nil {
				return err
			}
			if err := os.WriteFile(sessionFile, []byte(client.sessionID), 0644); err != nil {
				logger.Warn("failed to save session id", "err", err)
			}

			return play(ctx, client, cmd.Args().Slice(), cmd.Root().Writer, logger)
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error("submit failed", "err", err)
		os.Exit(1)
	}
}
