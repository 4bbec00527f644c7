package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phoned/internal/clock"
	"phoned/internal/host"
	"phoned/internal/plugins/console"
	_ "phoned/internal/plugins/phonetemplate"
	"phoned/pkg/plugin"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, load bool) (*Server, *host.Host) {
	t.Helper()

	logger := zap.NewNop()
	clk := clock.NewMockClock(time.Date(2024, 10, 1, 10, 0, 0, 0, time.Local))
	h := host.New(plugin.Global(), host.Config{}, logger, clk, afero.NewMemMapFs())
	if load {
		require.NoError(t, h.Load(console.Name, "phone-template"))
	}
	t.Cleanup(h.Unload)

	return NewServer(h, logger, 0), h
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleSitemap(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/console/ws")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var got []Endpoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, len(endpoints))

	w = do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostNotificationReachesConsole(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/events",
		`{"type":"notification","kind":"error","title":"SIM","message":"SIM card missing"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/console", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ConsoleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, console.IconError, resp.Rows[0].Icon)
	assert.Equal(t, "SIM card missing", resp.Rows[0].Message)
	assert.Equal(t, "01/10/2024 10:00:00", resp.Rows[0].Display)
	assert.True(t, resp.Visible)

	// Non-notification events leave the console alone
	w = do(t, s, http.MethodPost, "/api/events", `{"type":"online"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = do(t, s, http.MethodGet, "/api/console", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Rows, 1)
}

func TestPostEventErrors(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/events", `{"type":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown event type")

	w = do(t, s, http.MethodPost, "/api/events", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/requests", `{"type":"teleport"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostEventHostNotLoaded(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/events", `{"type":"online"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, s, http.MethodGet, "/api/console", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostRequest(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/requests", `{"type":"call","number":"+15551234"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSettings(t *testing.T) {
	s, h := newTestServer(t, true)

	p, ok := h.Plugin(console.Name)
	require.True(t, ok)
	window := p.(*console.Plugin).Window()
	window.Close()

	w := do(t, s, http.MethodPost, "/api/plugins/console/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, window.Visible())
	assert.Equal(t, 1, window.Presented())

	w = do(t, s, http.MethodPost, "/api/plugins/phone-template/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPost, "/api/plugins/missing/settings", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseConsoleThenSettingsShowsIt(t *testing.T) {
	s, h := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/console/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visible":false}`, w.Body.String())

	var resp ConsoleResponse
	w = do(t, s, http.MethodGet, "/api/console", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Visible)

	require.NoError(t, h.Settings(console.Name))

	w = do(t, s, http.MethodGet, "/api/console", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Visible)
}

func TestCloseConsoleNotLoaded(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/console/close", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPluginsAndErrors(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodGet, "/api/plugins", "")
	require.Equal(t, http.StatusOK, w.Code)

	var plugins []host.PluginStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&plugins))
	require.Len(t, plugins, 2)
	assert.Equal(t, console.Name, plugins[0].Name)
	assert.Equal(t, "phone", plugins[0].Kind)
	assert.Equal(t, float64(0), plugins[0].Status["rows"])
	assert.Equal(t, "phone-template", plugins[1].Name)

	w = do(t, s, http.MethodGet, "/api/errors", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestConsoleStream(t *testing.T) {
	s, h := newTestServer(t, true)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	post := func(body string) {
		resp, err := http.Post(ts.URL+"/api/events", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	post(`{"type":"notification","kind":"info","title":"Modem","message":"first"}`)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/console/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() StreamMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := read()
	assert.Equal(t, MessageRow, msg.Type)
	require.NotNil(t, msg.Row)
	assert.Equal(t, "first", msg.Row.Message)

	post(`{"type":"notification","kind":"warning","title":"Modem","message":"second"}`)
	msg = read()
	assert.Equal(t, MessageRow, msg.Type)
	require.NotNil(t, msg.Row)
	assert.Equal(t, "second", msg.Row.Message)
	assert.Equal(t, console.IconWarning, msg.Row.Icon)

	require.NoError(t, h.Settings(console.Name))
	msg = read()
	assert.Equal(t, MessagePresent, msg.Type)
	assert.Nil(t, msg.Row)

	// The viewer hides the window; garbage before it is ignored
	p, ok := h.Plugin(console.Name)
	require.True(t, ok)
	window := p.(*console.Plugin).Window()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(StreamMessage{Type: MessageClose}))
	require.Eventually(t, func() bool { return !window.Visible() }, 2*time.Second, time.Millisecond)

	require.NoError(t, h.Settings(console.Name))
	assert.True(t, window.Visible())
	msg = read()
	assert.Equal(t, MessagePresent, msg.Type)
}
