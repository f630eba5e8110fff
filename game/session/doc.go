// Package session provides session management for JS Hero.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Optional persistence to JSON files or a SQLite database
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// SessionPersistence is implemented by FilePersistence (one JSON file per
// session) and SQLitePersistence (one row per session, pure-Go driver).
//
// Session Identifiers:
//
// Generated sessions use 4-character hex IDs for easy reference. Lookups
// are case-insensitive.
//
// Persistence:
//
// The submitted code, its error, the unlocked level and the latest run
// reports are stored. Compiled scripts are not; persistence backends take a
// compiler and rebuild the solution when a session is loaded.
//
// Usage:
//
//	runner := script.NewRunner()
//	store, err := session.NewSQLitePersistence("data/sessions.db", runner)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("")
package session
