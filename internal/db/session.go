package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the radar process.
type Session struct {
	ID        string     `json:"session_id"`
	Label     string     `json:"label"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// StartSession creates a session with a fresh id.
func (db *DB) StartSession(label string, startedAt time.Time) (*Session, error) {
	s := &Session{ID: uuid.NewString(), Label: label, StartedAt: startedAt.UTC()}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, label, started_at) VALUES (?, ?, ?)`,
		s.ID, s.Label, unixSeconds(startedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, unixSeconds(endedAt), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession loads a session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	var (
		s       Session
		started float64
		ended   sql.NullFloat64
	)
	err := db.QueryRow(
		`SELECT session_id, label, started_at, ended_at FROM sessions WHERE session_id = ?`, id,
	).Scan(&s.ID, &s.Label, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = fromUnixSeconds(started)
	if ended.Valid {
		t := fromUnixSeconds(ended.Float64)
		s.EndedAt = &t
	}
	return &s, nil
}
