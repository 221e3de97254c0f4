package serverapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/store"
	"github.com/relaydev/commandhub/pkg/wire"
)

func newTestServer(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logManager, err := logging.New(logging.Options{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "commandhub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := New(st, logManager)
	return srv.Router(), st
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHappyPathSubmitFetchReport(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{
		Type:    wire.KindDelay,
		Payload: map[string]interface{}{"ms": 100},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitResp wire.SubmitCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	require.NotEmpty(t, submitResp.CommandID)

	rec = doJSON(t, engine, "GET", "/commands/"+submitResp.CommandID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var getResp wire.GetCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Equal(t, wire.StatusPending, getResp.Status)

	rec = doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var fetchResp wire.FetchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetchResp))
	require.NotNil(t, fetchResp.Command)
	require.Equal(t, submitResp.CommandID, fetchResp.Command.ID)
	require.Equal(t, wire.StatusRunning, fetchResp.Command.Status)

	rec = doJSON(t, engine, "POST", "/agent/result", wire.ResultRequest{
		AgentID:   "agent-1",
		CommandID: submitResp.CommandID,
		Status:    wire.StatusCompleted,
		Result:    map[string]interface{}{"ok": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, "GET", "/commands/"+submitResp.CommandID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Equal(t, wire.StatusCompleted, getResp.Status)
}

func TestSubmitCommandValidatesPayload(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{
		Type:    wire.KindDelay,
		Payload: map[string]interface{}{"ms": -5},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{
		Type:    wire.KindHTTPGetJSON,
		Payload: map[string]interface{}{"url": "not-a-url"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCommandNotFound(t *testing.T) {
	engine, _ := newTestServer(t)
	rec := doJSON(t, engine, "GET", "/commands/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFetchIsFIFO(t *testing.T) {
	engine, _ := newTestServer(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{Type: wire.KindNoop, Payload: map[string]interface{}{}})
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp wire.SubmitCommandResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		ids = append(ids, resp.CommandID)
	}

	for i, wantID := range ids {
		rec := doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
		require.Equal(t, http.StatusOK, rec.Code)
		var fetchResp wire.FetchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetchResp))
		require.Equalf(t, wantID, fetchResp.Command.ID, "fetch %d", i)

		rec = doJSON(t, engine, "POST", "/agent/result", wire.ResultRequest{
			AgentID: "agent-1", CommandID: wantID, Status: wire.StatusCompleted,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestResultReportIsIdempotent(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{Type: wire.KindNoop, Payload: map[string]interface{}{}})
	var submitResp wire.SubmitCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))

	rec = doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := wire.ResultRequest{AgentID: "agent-1", CommandID: submitResp.CommandID, Status: wire.StatusCompleted}
	rec = doJSON(t, engine, "POST", "/agent/result", req)
	require.Equal(t, http.StatusOK, rec.Code)

	// A retried report of the identical outcome is acknowledged, not a
	// conflict.
	rec = doJSON(t, engine, "POST", "/agent/result", req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResultReportConflictsOnWrongAgent(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{Type: wire.KindNoop, Payload: map[string]interface{}{}})
	var submitResp wire.SubmitCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))

	rec = doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, "POST", "/agent/result", wire.ResultRequest{
		AgentID: "agent-2", CommandID: submitResp.CommandID, Status: wire.StatusCompleted,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCrashRecoveryReportReopensCommand(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{Type: wire.KindNoop, Payload: map[string]interface{}{}})
	var submitResp wire.SubmitCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))

	rec = doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, "POST", "/agent/sync", wire.SyncRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var syncResp wire.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &syncResp))
	require.NotNil(t, syncResp.UnfinishedCommand)
	require.Equal(t, submitResp.CommandID, syncResp.UnfinishedCommand.ID)

	rec = doJSON(t, engine, "POST", "/agent/result", wire.ResultRequest{
		AgentID:   "agent-1",
		CommandID: submitResp.CommandID,
		Status:    wire.StatusFailed,
		Error:     reasonCrashUnknown,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, "GET", "/commands/"+submitResp.CommandID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var getResp wire.GetCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Equal(t, wire.StatusPending, getResp.Status)
}

func TestHeartbeatAlwaysAcknowledges(t *testing.T) {
	engine, _ := newTestServer(t)
	rec := doJSON(t, engine, "POST", "/agent/heartbeat", wire.HeartbeatRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp wire.HeartbeatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Acknowledged)
}

func TestListCommandEvents(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := doJSON(t, engine, "POST", "/commands", wire.SubmitCommandRequest{Type: wire.KindNoop, Payload: map[string]interface{}{}})
	var submitResp wire.SubmitCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))

	rec = doJSON(t, engine, "POST", "/agent/fetch", wire.FetchRequest{AgentID: "agent-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, "GET", "/commands/"+submitResp.CommandID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var eventsResp wire.ListCommandEventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eventsResp))
	require.Len(t, eventsResp.Events, 2)
}

func TestHealthEndpoint(t *testing.T) {
	engine, _ := newTestServer(t)
	rec := doJSON(t, engine, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
