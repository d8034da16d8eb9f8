package modules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Module status values recorded in the state store.
const (
	StatusUnknown       = "unknown"
	StatusRunning       = "running"
	StatusRestartFailed = "restart_failed"
)

// State is the recorded restart state of one module.
type State struct {
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	RestartCount int        `json:"restartCount"`
	LastRestart  *time.Time `json:"lastRestart,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// Store persists module restart state in the module_state table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordRestart stores the result of a restart attempt. A nil restartErr
// marks the module running; otherwise restart_failed with the error text.
func (s *Store) RecordRestart(ctx context.Context, name string, restartErr error) error {
	if name == "" {
		return fmt.Errorf("module name is empty")
	}

	status := StatusRunning
	var lastErr sql.NullString
	if restartErr != nil {
		status = StatusRestartFailed
		lastErr = sql.NullString{String: restartErr.Error(), Valid: true}
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO module_state(module, status, restart_count, last_restart, last_error, updated_at)
VALUES(?, ?, 1, ?, ?, ?)
ON CONFLICT(module) DO UPDATE SET
  status = excluded.status,
  restart_count = module_state.restart_count + 1,
  last_restart = excluded.last_restart,
  last_error = excluded.last_error,
  updated_at = excluded.updated_at;
`, name, status, now, lastErr, now)
	if err != nil {
		return fmt.Errorf("upsert module state: %w", err)
	}
	return nil
}

// Get returns the recorded state for name. Modules never restarted report
// StatusUnknown with a zero restart count.
func (s *Store) Get(ctx context.Context, name string) (State, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT module, status, restart_count, last_restart, last_error FROM module_state WHERE module = ?;", name)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return State{Name: name, Status: StatusUnknown}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read module state: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (State, error) {
	var (
		st          State
		lastRestart sql.NullString
		lastErr     sql.NullString
	)
	if err := row.Scan(&st.Name, &st.Status, &st.RestartCount, &lastRestart, &lastErr); err != nil {
		return State{}, err
	}
	if lastRestart.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastRestart.String)
		if err != nil {
			return State{}, fmt.Errorf("parse last_restart for %s: %w", st.Name, err)
		}
		st.LastRestart = &t
	}
	st.LastError = lastErr.String
	return st, nil
}
