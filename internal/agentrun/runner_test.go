package agentrun

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydev/commandhub/internal/agentclient"
	"github.com/relaydev/commandhub/internal/executor"
	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/serverapi"
	"github.com/relaydev/commandhub/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	logManager, err := logging.New(logging.Options{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "commandhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := serverapi.New(st, logManager)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func newTestRunner(t *testing.T, ts *httptest.Server, killAfter int) *Runner {
	t.Helper()
	logManager, err := logging.New(logging.Options{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	client := agentclient.New(ts.URL)
	registry := executor.NewRegistry(&executor.NoopExecutor{}, &executor.DelayExecutor{})
	return New(client, registry, logManager, "agent-1", 5*time.Millisecond, killAfter, false)
}

func TestRunnerPollsExecutesAndReports(t *testing.T) {
	ts, st := newTestServer(t)
	require.NoError(t, st.InsertCommand("cmd-1", store.KindNoop, map[string]interface{}{}))

	runner := newTestRunner(t, ts, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, runner.Run(ctx))

	cmd, err := st.GetCommand("cmd-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, cmd.Status)
}

func TestRunnerKillAfterStopsPolling(t *testing.T) {
	ts, _ := newTestServer(t)

	runner := newTestRunner(t, ts, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := runner.Run(ctx)
	require.NoError(t, err)
}

func TestRunnerSyncOnStartupReopensCrashedCommand(t *testing.T) {
	ts, st := newTestServer(t)
	require.NoError(t, st.InsertCommand("cmd-1", store.KindNoop, map[string]interface{}{}))
	_, err := st.AssignNextTo("agent-1", time.Now().UTC())
	require.NoError(t, err)

	runner := newTestRunner(t, ts, 0)
	err = runner.syncOnStartup(context.Background())
	require.NoError(t, err)

	cmd, err := st.GetCommand("cmd-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusPending, cmd.Status)
}
