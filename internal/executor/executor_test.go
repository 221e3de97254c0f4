package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaydev/commandhub/pkg/wire"
)

func TestRegistryGetUnknownKind(t *testing.T) {
	r := NewRegistry(&DelayExecutor{})
	_, err := r.Get("nonexistent")
	require.Error(t, err)
}

func TestRegistryGetKnownKind(t *testing.T) {
	r := NewRegistry(&DelayExecutor{}, &NoopExecutor{})
	exec, err := r.Get(string(wire.KindDelay))
	require.NoError(t, err)
	require.Equal(t, string(wire.KindDelay), exec.Kind())
}

func TestDelayExecutorRejectsNonPositiveMs(t *testing.T) {
	payload, _ := json.Marshal(wire.DelayPayload{Ms: 0})
	_, err := DelayExecutor{}.Execute(context.Background(), payload, nil)
	require.Error(t, err)
}

func TestDelayExecutorCompletesAndReportsProgress(t *testing.T) {
	payload, _ := json.Marshal(wire.DelayPayload{Ms: 50})
	progressCalls := 0
	result, err := DelayExecutor{}.Execute(context.Background(), payload, func() { progressCalls++ })
	require.NoError(t, err)

	delayResult, ok := result.(wire.DelayResult)
	require.True(t, ok)
	require.True(t, delayResult.OK)
	require.GreaterOrEqual(t, delayResult.TookMs, int64(0))
	require.Equal(t, 1, progressCalls)
}

func TestDelayExecutorRespectsCancellation(t *testing.T) {
	payload, _ := json.Marshal(wire.DelayPayload{Ms: 5000})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := DelayExecutor{}.Execute(ctx, payload, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNoopExecutorReturnsOK(t *testing.T) {
	result, err := (&NoopExecutor{}).Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"ok": true}, result)
}

func TestHTTPGetJSONExecutorParsesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"hello":"world"}`))
	}))
	defer srv.Close()

	payload, _ := json.Marshal(wire.HTTPGetJSONPayload{URL: srv.URL})
	result, err := HTTPGetJSONExecutor{}.Execute(context.Background(), payload, nil)
	require.NoError(t, err)

	r, ok := result.(wire.HTTPGetJSONResult)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, r.Status)
	require.False(t, r.Truncated)
	body, ok := r.Body.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "world", body["hello"])
}

func TestHTTPGetJSONExecutorFallsBackToTextForNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	payload, _ := json.Marshal(wire.HTTPGetJSONPayload{URL: srv.URL})
	result, err := HTTPGetJSONExecutor{}.Execute(context.Background(), payload, nil)
	require.NoError(t, err)

	r, ok := result.(wire.HTTPGetJSONResult)
	require.True(t, ok)
	require.Equal(t, "plain body", r.Body)
}

func TestHTTPGetJSONExecutorTruncatesOversizeBody(t *testing.T) {
	big := make([]byte, maxBodySize*2)
	for i := range big {
		big[i] = 'a'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(big)
	}))
	defer srv.Close()

	payload, _ := json.Marshal(wire.HTTPGetJSONPayload{URL: srv.URL})
	result, err := HTTPGetJSONExecutor{}.Execute(context.Background(), payload, nil)
	require.NoError(t, err)

	r, ok := result.(wire.HTTPGetJSONResult)
	require.True(t, ok)
	require.True(t, r.Truncated)
	require.Equal(t, len(big), r.BytesReturned)
}

func TestHTTPGetJSONExecutorTransportFailureIsASuccessfulResult(t *testing.T) {
	payload, _ := json.Marshal(wire.HTTPGetJSONPayload{URL: "http://127.0.0.1:0/unreachable"})
	result, err := HTTPGetJSONExecutor{}.Execute(context.Background(), payload, nil)
	require.NoError(t, err)

	r, ok := result.(wire.HTTPGetJSONResult)
	require.True(t, ok)
	require.NotEmpty(t, r.Error)
}

func TestHTTPGetJSONExecutorRejectsInvalidURL(t *testing.T) {
	payload, _ := json.Marshal(wire.HTTPGetJSONPayload{URL: "not-a-url"})
	_, err := HTTPGetJSONExecutor{}.Execute(context.Background(), payload, nil)
	require.Error(t, err)
}
