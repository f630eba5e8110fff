// Package mcp exposes JS Hero to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request against the REST
// API of a running server, and the JSON answer is rendered as text for the
// agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions, delete_session
//   - submit_code: store a solution and replay the unlocked levels
//   - run_level: replay one level and print its move log
//   - get_progress: per-level unlocked/attempted/passed state
//   - list_levels, describe_level: catalogue and boards with coordinates
//   - instrument_code: show the loop guards added before execution
//   - player_api: reference for the player object
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
