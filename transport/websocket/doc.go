// Package websocket pushes JS Hero run results to board viewers.
//
// A central Hub keeps the connected viewers grouped by session. Every time a
// solution is run against a level the API hands the report to the hub, which
// sends it to all viewers of that session so a browser can replay the move
// log on its board.
//
// Viewers connect with the session ID as a query parameter:
//
//	ws://localhost:8080/ws?session=ab12
//
// Outgoing frames are JSON, one message per frame:
//
//	{"session_id": "ab12", "event": "run_result", "report": {...}}
//	{"session_id": "ab12", "event": "code_submitted", "data": {...}}
//
// Viewers are read-only; anything they send is discarded. A viewer that
// cannot keep up is disconnected.
package websocket
