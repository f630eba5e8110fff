// Command jshero starts the JS Hero server and its companion tools.
//
// Commands:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "run" – runs a solution file against the levels and prints every outcome
//  4. "instrument" – prints a script with its loops guarded
//  5. "levels" – draws the level catalogue
//
// Flags control host/port, the levels directory, session storage, the loop
// budget applied to learner code, debug logging, and optional ngrok tunneling
// for easy external access during development. Every flag can also be set
// from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/jshero/api"
	"github.com/wricardo/jshero/game/config"
	"github.com/wricardo/jshero/game/script"
	"github.com/wricardo/jshero/game/service"
	"github.com/wricardo/jshero/game/session"
	"github.com/wricardo/jshero/transport/mcp"
	"github.com/wricardo/jshero/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "JS Hero Server"
)

const (
	storeFile   = "file"
	storeSQLite = "sqlite"
)

// settings is the resolved configuration shared by every command
type settings struct {
	Host        string
	Port        int
	LevelsDir   string
	Store       string
	SessionsDir string
	DBPath      string
	SessionTTL  time.Duration

	LoopLimit   int
	LoopTimeout time.Duration
	RunTimeout  time.Duration

	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func settingsFromCommand(cmd *cli.Command) settings {
	return settings{
		Host:        cmd.String("host"),
		Port:        cmd.Int("port"),
		LevelsDir:   cmd.String("levels-dir"),
		Store:       cmd.String("store"),
		SessionsDir: cmd.String("sessions-dir"),
		DBPath:      cmd.String("db"),
		SessionTTL:  cmd.Duration("session-ttl"),
		LoopLimit:   cmd.Int("loop-limit"),
		LoopTimeout: cmd.Duration("loop-timeout"),
		RunTimeout:  cmd.Duration("run-timeout"),
		Ngrok:       cmd.Bool("ngrok"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

// newRunner builds the script runner every command compiles learner code with
func (s settings) newRunner(logger *log.Logger) *script.Runner {
	return script.NewRunner(
		script.WithLimit(script.Limit{Iterations: s.LoopLimit, Timeout: s.LoopTimeout}),
		script.WithTimeout(s.RunTimeout),
		script.WithLogger(logger),
	)
}

func newLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "jshero",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:           "jshero",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "levels-dir", Value: "levels", Usage: "Directory containing level files", Sources: cli.EnvVars("LEVELS_DIR")},
			&cli.StringFlag{Name: "store", Value: storeFile, Usage: "Session store: file or sqlite", Sources: cli.EnvVars("SESSION_STORE")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for the file session store", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "db", Value: "jshero.db", Usage: "Database path for the sqlite session store", Sources: cli.EnvVars("DB_PATH")},
			&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "Drop sessions idle for longer than this", Sources: cli.EnvVars("SESSION_TTL")},
			&cli.IntFlag{Name: "loop-limit", Value: script.DefaultIterations, Usage: "Iterations allowed per loop of learner code", Sources: cli.EnvVars("LOOP_LIMIT")},
			&cli.DurationFlag{Name: "loop-timeout", Usage: "Time allowed per loop of learner code; overrides loop-limit", Sources: cli.EnvVars("LOOP_TIMEOUT")},
			&cli.DurationFlag{Name: "run-timeout", Value: script.DefaultRunTimeout, Usage: "Wall-clock limit of a single run, 0 disables it", Sources: cli.EnvVars("RUN_TIMEOUT")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return log.WithContext(ctx, newLogger(cmd.Bool("debug"))), nil
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  mcpAction,
			},
			{
				Name:      "run",
				Usage:     "Run a solution file against the levels",
				ArgsUsage: "<script.js>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "Only run this level"},
					&cli.BoolFlag{Name: "moves", Aliases: []string{"m"}, Usage: "Print the move log of every run"},
				},
				Action: runAction,
			},
			{
				Name:      "instrument",
				Usage:     "Print a script with its loops guarded",
				ArgsUsage: "<script.js>",
				Action:    instrumentAction,
			},
			{
				Name:   "levels",
				Usage:  "Draw the level catalogue",
				Action: levelsAction,
			},
		},
	}
}

func main() {
	// .env values feed the flag env sources, so load them before parsing
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// services bundles everything a server command needs
type services struct {
	game     service.GameService
	sessions *session.Manager
	levels   *config.Manager
	runner   *script.Runner
	store    session.SessionPersistence
}

// Close releases the session store
func (s *services) Close() error {
	if closer, ok := s.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func openStore(cfg settings, compiler service.Compiler) (session.SessionPersistence, error) {
	switch cfg.Store {
	case storeFile, "":
		return session.NewFilePersistence(cfg.SessionsDir, compiler)
	case storeSQLite:
		return session.NewSQLitePersistence(cfg.DBPath, compiler)
	}
	return nil, fmt.Errorf("unknown session store %q (use %s or %s)", cfg.Store, storeFile, storeSQLite)
}

// initializeServices wires the level catalogue, the session store and the
// game service, then restores persisted sessions.
func initializeServices(cfg settings, logger *log.Logger) (*services, error) {
	levels, err := config.NewManager(cfg.LevelsDir, config.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	runner := cfg.newRunner(logger)

	store, err := openStore(cfg, runner)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessions := session.NewManagerWithPersistence(store)
	sessions.SetLogger(logger)
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "err", err)
	}

	return &services{
		game:     service.NewGameService(sessions, levels, runner, service.WithLogger(logger)),
		sessions: sessions,
		levels:   levels,
		runner:   runner,
		store:    store,
	}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				logger.Info("cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// storeSyncRoutine drops sessions from memory once their stored record is
// gone, so deleting a session file or row ends the session.
func storeSyncRoutine(ctx context.Context, manager *session.Manager, store session.SessionPersistence, logger *log.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphans(manager, store, logger)
		}
	}
}

func pruneOrphans(manager *session.Manager, store session.SessionPersistence, logger *log.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if store.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory", "session", sess.ID)
		}
	}
	if pruned > 0 {
		logger.Info("store sync pruned orphaned sessions", "count", pruned)
	}
	return pruned
}

// newMCPHandler serves MCP JSON-RPC messages over plain HTTP POST
func newMCPHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the REST API at the root and the MCP endpoint at /mcp
func newRouter(game service.GameService, hub *websocket.Hub, baseURL string, logger *log.Logger) http.Handler {
	apiServer := api.NewServer(game, hub)
	apiServer.SetLogger(logger)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", newMCPHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// serveAction starts the HTTP server with REST API, WebSocket hub, and an
// /mcp endpoint. If ngrok is enabled, it also provisions a public tunnel.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	logger := log.FromContext(ctx)
	cfg := settingsFromCommand(cmd)

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	hub.SetLogger(logger)
	go hub.Run()
	defer hub.Close()

	addr := cfg.addr()
	handler := newRouter(svc.game, hub, "http://"+addr, logger)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"api", fmt.Sprintf("http://%s/api", addr),
			"ws", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	go sessionCleanupRoutine(ctx, svc.sessions, cfg.SessionTTL, logger)
	go storeSyncRoutine(ctx, svc.sessions, svc.store, logger)

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(ctx, cfg, handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP server shutdown error", "err", shutdownErr)
	}
	if saveErr := svc.sessions.SaveAllSessions(); saveErr != nil {
		logger.Error("failed to save sessions", "err", saveErr)
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runTunnel serves handler through an ngrok tunnel until ctx is done
func runTunnel(ctx context.Context, cfg settings, handler http.Handler, logger *log.Logger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Info("using custom ngrok domain", "domain", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Error("failed to close ngrok tunnel", "err", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("🚀 ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"ws", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "err", err)
	}
	logger.Info("ngrok tunnel closed")
}

// apiAvailable reports whether a JS Hero API answers at baseURL
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// mcpAction runs an MCP stdio server. It reuses an API already listening on
// host:port; otherwise it starts an internal HTTP API bound to a random
// loopback port and targets that.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	logger := log.FromContext(ctx)
	cfg := settingsFromCommand(cmd)

	externalURL := "http://" + cfg.addr()
	logger.Info("checking for external API server", "url", externalURL)

	baseURL := externalURL
	if !apiAvailable(externalURL) {
		logger.Info("no external API server found, starting internal HTTP server")

		svc, err := initializeServices(cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Close()
		defer svc.sessions.SaveAllSessions()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		hub.SetLogger(logger)
		go hub.Run()
		defer hub.Close()

		apiServer := api.NewServer(svc.game, hub)
		apiServer.SetLogger(logger)
		httpServer := &http.Server{Handler: apiServer}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "err", err)
			}
		}()

		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
