package server

import (
	"encoding/json"
	"sync"
	"time"

	"chart-observer/src/models"

	"github.com/gorilla/websocket"
)

const (
	viewerWriteWait  = 2 * time.Second
	viewerIdleWait   = 60 * time.Second
	viewerPingEvery  = viewerIdleWait / 2
	maxCommandSize   = 4 * 1024
	viewerQueueDepth = 256
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is one connected chart viewer. Frames reach it through send, which
// only the hub closes; commands flow the other way through the hub's sink.
type Client struct {
	hub    *ChartServer
	conn   *websocket.Conn
	send   chan *models.MChartFrame
	remote string
	once   sync.Once
}

func newClient(hub *ChartServer, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *models.MChartFrame, viewerQueueDepth),
		remote: conn.RemoteAddr().String(),
	}
}

// -----------------------------------------------------------------------------

// leave detaches the viewer from the hub and closes its socket. Both pumps
// call it on exit; only the first call has an effect.
func (c *Client) leave(cause error) {
	c.once.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()

		if cause != nil && websocket.IsUnexpectedCloseError(cause, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
			c.hub.Logger.Info("Viewer %s dropped: %v", c.remote, cause)
			return
		}
		c.hub.Logger.Info("Viewer %s disconnected", c.remote)
	})
}

// -----------------------------------------------------------------------------

func (c *Client) touch() {
	c.conn.SetReadDeadline(time.Now().Add(viewerIdleWait))
}

// -----------------------------------------------------------------------------
// listen - decodes viewer commands until the socket goes away
// -----------------------------------------------------------------------------

func (c *Client) listen() {
	var cause error
	defer func() { c.leave(cause) }()

	c.conn.SetReadLimit(maxCommandSize)
	c.touch()
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			cause = err
			return
		}
		c.touch()
		if kind != websocket.TextMessage {
			continue
		}

		var cmd models.MViewerCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			// a viewer speaking another protocol is not worth keeping
			cause = err
			c.hub.Logger.Info("Viewer %s sent %q: %v", c.remote, truncate(payload), err)
			return
		}
		c.hub.handleCommand(c, cmd)
	}
}

// -----------------------------------------------------------------------------
// deliver - writes queued frames and keeps the socket alive
// -----------------------------------------------------------------------------

func (c *Client) deliver() {
	keepalive := time.NewTicker(viewerPingEvery)
	defer keepalive.Stop()

	for {
		select {
		case frame, open := <-c.send:
			if !open {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "chart closed"),
					time.Now().Add(viewerWriteWait))
				c.leave(nil)
				return
			}
			if err := c.writeFrame(frame); err != nil {
				c.leave(err)
				return
			}

		case <-keepalive.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(viewerWriteWait)); err != nil {
				c.leave(err)
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Client) writeFrame(frame *models.MChartFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.hub.Logger.Error("Encoding %s frame: %v", frame.Type, err)
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(viewerWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// -----------------------------------------------------------------------------

func truncate(payload []byte) string {
	if len(payload) > 64 {
		return string(payload[:64]) + "..."
	}
	return string(payload)
}
