// Package api provides the HTTP REST API for JS Hero.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a new session
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Playing:
//   - PUT /api/sessions/{id}/code - Submit a solution and replay the unlocked levels
//   - POST /api/sessions/{id}/levels/{level}/run - Replay one unlocked level
//   - GET /api/sessions/{id}/progress - Per-level progress
//
// Levels:
//   - GET /api/levels - List levels in play order
//   - POST /api/levels - Validate and store a level definition
//   - GET /api/levels/{id} - Get a level definition
//
// Tooling:
//   - POST /api/instrument - Return code with every loop guarded
//   - GET /api/health - Liveness check
//   - GET /ws?session={id} - WebSocket feed of run results
//
// Submitting code:
//
//	PUT /api/sessions/ab12/code
//	{"code": "function solution(p) { p.step(); }"}
//
// A submission that does not compile is still stored and answered with 200;
// the response carries accepted=false, code_error and, for syntax errors,
// error_line and error_column.
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from the failure:
// 404 for unknown sessions and levels, 403 for locked levels, 409 when the
// session has no working solution and 400 for invalid input.
//
//	{
//	  "error": "level is locked: gauntlet"
//	}
package api
