package modules

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/edgeagent/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db)
}

func TestStoreGetMissingReturnsUnknown(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	st, err := s.Get(context.Background(), "edgeHub")
	require.NoError(t, err)
	assert.Equal(t, State{Name: "edgeHub", Status: StatusUnknown}, st)
}

func TestStoreRecordRestartCountsAttempts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, s.RecordRestart(ctx, "edgeHub", nil))
	require.NoError(t, s.RecordRestart(ctx, "edgeHub", errors.New("exit status 1")))

	st, err := s.Get(ctx, "edgeHub")
	require.NoError(t, err)
	assert.Equal(t, StatusRestartFailed, st.Status)
	assert.Equal(t, 2, st.RestartCount)
	assert.Equal(t, "exit status 1", st.LastError)
	require.NotNil(t, st.LastRestart)
	assert.True(t, fixed.Equal(*st.LastRestart))

	require.NoError(t, s.RecordRestart(ctx, "edgeHub", nil))
	st, err = s.Get(ctx, "edgeHub")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, 3, st.RestartCount)
	assert.Empty(t, st.LastError)
}

func TestStoreRecordRestartRejectsEmptyName(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Error(t, s.RecordRestart(context.Background(), "", nil))
}
