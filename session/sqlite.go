package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/askmesh/askmesh/core"
)

// SQLiteStore is a durable SessionStore backed by a SQLite database file.
// Conversations survive process restarts, so a returning user sees their
// prior exchanges. Session state and events are stored as JSON columns;
// events keep their insertion order via an autoincrement key.
//
// SQLite supports a single writer, so the pool is capped at one connection
// and WAL mode is enabled for concurrent readers.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the session database at path, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("session: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, path: path}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: enable WAL mode: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		created DATETIME NOT NULL,
		updated DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts (or resets) a session with the given id.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE session_id = ?", sessionID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO sessions (id, state, metadata, created, updated) VALUES (?, '{}', '{}', ?, ?)",
		sessionID, sess.Created, sess.Updated,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session and its event history, creating an empty session when
// the id is unknown.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	var stateJSON, metaJSON string
	var created, updated time.Time
	err := s.db.QueryRow(
		"SELECT state, metadata, created, updated FROM sessions WHERE id = ?", sessionID,
	).Scan(&stateJSON, &metaJSON, &created, &updated)
	if err == sql.ErrNoRows {
		return s.Create(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	sess.Created = created
	sess.Updated = updated
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("session: decode state: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("session: decode metadata: %w", err)
	}

	rows, err := s.db.Query("SELECT payload FROM events WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("session: decode event: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}
	return sess, rows.Err()
}

// AppendEvent persists an event at the end of the session history.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("session: encode event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.ensureSessionTx(tx, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO events (session_id, payload) VALUES (?, ?)", sessionID, string(payload)); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE sessions SET updated = ? WHERE id = ?", time.Now(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the stored session state.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.ensureSessionTx(tx, sessionID); err != nil {
		return err
	}

	var stateJSON string
	if err := tx.QueryRow("SELECT state FROM sessions WHERE id = ?", sessionID).Scan(&stateJSON); err != nil {
		return err
	}
	state := map[string]interface{}{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("session: decode state: %w", err)
	}
	for k, v := range delta {
		state[k] = v
	}
	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}

	if _, err := tx.Exec("UPDATE sessions SET state = ?, updated = ? WHERE id = ?", string(merged), time.Now(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// ensureSessionTx creates the session row if it does not exist yet; caller
// owns the transaction.
func (s *SQLiteStore) ensureSessionTx(tx *sql.Tx, sessionID string) error {
	now := time.Now()
	_, err := tx.Exec(
		"INSERT OR IGNORE INTO sessions (id, state, metadata, created, updated) VALUES (?, '{}', '{}', ?, ?)",
		sessionID, now, now,
	)
	return err
}
