package reclaim

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "commandhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestReclaimerTickResetsStaleRunningCommands(t *testing.T) {
	st := newTestStore(t)
	logManager, err := logging.New(logging.Options{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	require.NoError(t, st.InsertCommand("cmd-1", store.KindNoop, map[string]interface{}{}))
	start := time.Now().UTC().Add(-1 * time.Hour)
	_, err = st.AssignNextTo("agent-1", start)
	require.NoError(t, err)

	r := New(st, logManager, 10*time.Millisecond, 5*time.Second)
	r.tick()

	cmd, err := st.GetCommand("cmd-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusPending, cmd.Status)
}

func TestReclaimerStartStopIsClean(t *testing.T) {
	st := newTestStore(t)
	logManager, err := logging.New(logging.Options{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	r := New(st, logManager, 5*time.Millisecond, time.Second)
	go r.Start()
	time.Sleep(20 * time.Millisecond)
	r.Stop()
}
