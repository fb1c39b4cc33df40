package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azurexth/LimSim/internal/dispatcher"
	"github.com/azurexth/LimSim/internal/parser"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/internal/stream"
	"github.com/azurexth/LimSim/internal/worker"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fixedStatus sim.Status

func (s fixedStatus) Status() sim.Status { return sim.Status(s) }

type failingCommander struct{ err error }

func (f failingCommander) Dispatch(dispatcher.Event) (any, error) { return nil, f.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func buildTestRouter(t *testing.T, source worker.StatusSource) (*gin.Engine, *worker.Manager) {
	t.Helper()
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	m := worker.NewManager(worker.Dependencies{ParserService: parser.NewParser(slog.Default())}, source)
	m.RegisterHandlers(d)

	svc := NewService(Dependencies{Commander: d, Stream: stream.NewHub(d, nil)})
	return svc.Router(), m
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFocus(t *testing.T) {
	r, m := buildTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/focus", map[string]any{"x": 0, "y": -12.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, ok := m.Controls().Focus.Take()
	require.True(t, ok)
	assert.Equal(t, 0.0, p.X)
	assert.Equal(t, -12.5, p.Y)
}

func TestFocusBadBody(t *testing.T) {
	r, m := buildTestRouter(t, nil)

	for _, body := range []any{
		map[string]any{"x": 1},
		"not json",
		map[string]any{"x": "a", "y": "b"},
	} {
		w := doRequest(r, http.MethodPost, "/api/focus", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
	}
	assert.False(t, m.Controls().Focus.Pending())
}

func TestPauseResume(t *testing.T) {
	r, m := buildTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, m.Controls().Paused())

	w = doRequest(r, http.MethodPost, "/api/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, m.Controls().Paused())

	w = doRequest(r, http.MethodGet, "/api/pause", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatus(t *testing.T) {
	r, m := buildTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	m.Attach(fixedStatus{Mode: "live", Tick: 9, Pending: 2, Running: 5, EgoID: 3})
	w = doRequest(r, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var s sim.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, int64(9), s.Tick)
	assert.Equal(t, 5, s.Running)
	assert.Equal(t, int64(3), s.EgoID)
}

func TestCommandErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{dispatcher.ErrQueueFull, http.StatusTooManyRequests},
		{dispatcher.ErrClosed, http.StatusServiceUnavailable},
		{dispatcher.ErrUnknownCommand, http.StatusNotFound},
		{parser.ErrMissingArgs, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := NewService(Dependencies{Commander: failingCommander{err: tt.err}}).Router()
		w := doRequest(r, http.MethodPost, "/api/pause", nil)
		assert.Equal(t, tt.code, w.Code, "error %v", tt.err)
	}
}

func TestNoCommander(t *testing.T) {
	r := NewService(Dependencies{}).Router()
	w := doRequest(r, http.MethodPost, "/api/pause", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(r, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r := NewService(Dependencies{}).Router()
	w := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestServerServesWebSocket(t *testing.T) {
	r, _ := buildTestRouter(t, fixedStatus{Mode: "replay"})

	srv, err := Listen("127.0.0.1:0", r)
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	conn, _, err := ws.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"pause"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(msg), `"for":"pause"`), string(msg))
	_ = conn.Close()

	require.NoError(t, srv.Shutdown(context.Background()))
}
