// Package api is the client side of the control API, used by `limsim ctl`.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/pkg/streaming"
)

// Client talks to a running limsim process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Focus asks the simulation to focus on (x, y).
func (c *Client) Focus(x, y float64) error {
	return c.post("/api/focus", map[string]float64{"x": x, "y": y})
}

// Pause freezes vehicle motion.
func (c *Client) Pause() error {
	return c.post("/api/pause", nil)
}

// Resume undoes Pause.
func (c *Client) Resume() error {
	return c.post("/api/resume", nil)
}

// Status fetches the current run status.
func (c *Client) Status() (sim.Status, error) {
	var s sim.Status
	resp, err := c.httpClient.Get(c.baseURL + "/api/status")
	if err != nil {
		return s, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return s, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, fmt.Errorf("failed to decode status: %w", err)
	}
	return s, nil
}

// Watch streams viewer messages to fn until ctx is done, the server closes
// the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(streaming.Envelope) error) error {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}
		var env streaming.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		if err := fn(env); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (c *Client) post(path string, body any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

// checkResponse turns a non-200 response into an error carrying the
// server's message.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

// ErrStop can be returned from a Watch callback to end the stream without
// reporting an error.
var ErrStop = errors.New("stop watching")
