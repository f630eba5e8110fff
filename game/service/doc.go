// Package service provides the business logic layer for JS Hero.
//
// The service package implements:
//   - Multi-session learner workspaces
//   - Code submission, compilation and replay of unlocked levels
//   - Level progression (a passed level unlocks the next one)
//   - Per-level run reports carrying the move log for renderers
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval and persistence.
// LevelManager serves the level catalogue in play order.
// Compiler turns learner source into runnable scripts (script.Runner).
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP)
// and the engine. A session keeps the last submitted code, its compiled
// script, the index of the furthest unlocked level and the latest report of
// every level it ran. Each run resolves a fresh copy of the level, so
// sessions never share state.
//
// Usage:
//
//	sessionMgr := session.NewManager(runner)
//	levelMgr, _ := config.NewManager("levels")
//	gameService := service.NewGameService(sessionMgr, levelMgr, runner)
//
//	info, err := gameService.CreateSession(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.SubmitCode(ctx, info.ID, source)
//
// Progression:
//
// A level counts as passed when the first move of its last batch is not a
// death. Levels are replayed in order; the next level unlocks only while
// every level before it passed, and progress never moves backwards.
package service
