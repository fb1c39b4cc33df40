package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/azurexth/LimSim/internal/dispatcher"
	"github.com/azurexth/LimSim/pkg/streaming"
)

const (
	sendChSize     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var errNoCommander = errors.New("commands are not accepted")

// client is one viewer connection with a single write goroutine.
type client struct {
	hub    *Hub
	conn   *ws.Conn
	remote string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(h *Hub, conn *ws.Conn, remote string) *client {
	return &client{
		hub:    h,
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, sendChSize),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks; a full queue drops the message.
func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
		c.hub.sent.Add(1)
	default:
		c.hub.dropped.Add(1)
	}
}

// writeLoop drains send and keeps the connection alive with pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.hub.logger.Debug("WebSocket write error", "remote", c.remote, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop turns viewer envelopes into dispatcher commands and acks them.
func (c *client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					c.hub.logger.Warn("WebSocket read error", "remote", c.remote, "error", err)
				}
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.hub.logger.Debug("Ignoring malformed viewer message", "remote", c.remote, "raw", string(message))
			continue
		}
		c.ack(env.Type, c.execute(env))
	}
}

func (c *client) execute(env streaming.Envelope) error {
	if c.hub.commander == nil {
		return errNoCommander
	}

	var e dispatcher.Event
	switch env.Type {
	case streaming.TypeFocus:
		var p streaming.FocusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("focus payload: %w", err)
		}
		e = dispatcher.Event{
			Command: dispatcher.CommandFocus,
			Args: []string{
				strconv.FormatFloat(p.X, 'f', -1, 64),
				strconv.FormatFloat(p.Y, 'f', -1, 64),
			},
		}
	case streaming.TypePause:
		e = dispatcher.Event{Command: dispatcher.CommandPause}
	case streaming.TypeResume:
		e = dispatcher.Event{Command: dispatcher.CommandResume}
	default:
		return fmt.Errorf("%w: %s", dispatcher.ErrUnknownCommand, env.Type)
	}

	_, err := c.hub.commander.Dispatch(e)
	return err
}

func (c *client) ack(msgType string, err error) {
	ack := streaming.AckMessage{Type: streaming.TypeAck, For: msgType}
	if err != nil {
		ack.Error = err.Error()
	}
	data, mErr := json.Marshal(ack)
	if mErr != nil {
		return
	}
	c.enqueue(data)
}

// close unregisters the viewer and shuts the connection once.
func (c *client) close() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
}
