//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/server"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	cfg := config.Default()
	cfg.State.Dir = t.TempDir()
	cfg.RateLimit.Enabled = false
	cfg.Logging.Level = "error"

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndRoot(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Engine(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = doJSON(t, srv.Engine(), "GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debugos-backend", decode(t, w)["service"])
}

func TestWorktreeLifecycle(t *testing.T) {
	srv := newTestServer(t)
	root := t.TempDir()

	w := doJSON(t, srv.Engine(), "POST", "/worktrees", map[string]interface{}{"root": root})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	wtID, ok := created["id"].(string)
	require.True(t, ok, "worktree id missing in %v", created)

	w = doJSON(t, srv.Engine(), "GET", "/worktrees", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = doJSON(t, srv.Engine(), "DELETE", "/worktrees/"+wtID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv.Engine(), "DELETE", "/worktrees/"+wtID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScenarioSaveAndList(t *testing.T) {
	srv := newTestServer(t)
	root := t.TempDir()

	w := doJSON(t, srv.Engine(), "POST", "/worktrees", map[string]interface{}{"root": root})
	require.Equal(t, http.StatusCreated, w.Code)
	wtID := decode(t, w)["id"].(string)

	scenario := map[string]interface{}{
		"label":   "run server",
		"adapter": "delve",
		"program": filepath.Join(root, "bin", "server"),
	}
	w = doJSON(t, srv.Engine(), "POST", "/worktrees/"+wtID+"/scenarios", scenario)
	require.Equal(t, http.StatusCreated, w.Code)

	// The document lands under .debug in the worktree
	data, err := os.ReadFile(filepath.Join(root, ".debug", "scenarios.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "run server")

	w = doJSON(t, srv.Engine(), "GET", "/worktrees/"+wtID+"/scenarios", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = doJSON(t, srv.Engine(), "GET", "/worktrees/"+wtID+"/scenarios/documents", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestLayoutRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Engine(), "GET", "/layouts/delve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	layout := map[string]interface{}{
		"adapter":       "delve",
		"dock_position": "bottom",
		"panes":         json.RawMessage(`[{"kind":"console"}]`),
	}
	w = doJSON(t, srv.Engine(), "PUT", "/layouts/delve", layout)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv.Engine(), "GET", "/layouts/delve", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bottom", decode(t, w)["dock_position"])
}

func TestRerunStateAndConfirmations(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Engine(), "GET", "/rerun/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["debug_scenario_scheduled_last"])

	// Nothing ever ran, rerun must refuse
	w = doJSON(t, srv.Engine(), "POST", "/rerun", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv.Engine(), "GET", "/confirmations", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["count"])

	w = doJSON(t, srv.Engine(), "POST", "/confirmations/nope", map[string]interface{}{"confirmed": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionEndpointsWithoutSessions(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Engine(), "GET", "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["count"])

	w = doJSON(t, srv.Engine(), "GET", "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv.Engine(), "POST", "/sessions/missing/restart", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv.Engine(), "GET", "/threads/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["state"])

	// Close of an unknown session is accepted and ignored
	w = doJSON(t, srv.Engine(), "DELETE", "/sessions/missing", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStartSessionValidation(t *testing.T) {
	srv := newTestServer(t)

	// Neither scenario nor label
	w := doJSON(t, srv.Engine(), "POST", "/sessions", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Label with no matching saved scenario
	root := t.TempDir()
	res := doJSON(t, srv.Engine(), "POST", "/worktrees", map[string]interface{}{"root": root})
	require.Equal(t, http.StatusCreated, res.Code)
	wtID := decode(t, res)["id"].(string)

	w = doJSON(t, srv.Engine(), "POST", "/sessions", map[string]interface{}{
		"label":       "never saved",
		"worktree_id": wtID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsJSON(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv.Engine(), "GET", "/metrics/json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
