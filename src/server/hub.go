package server

import (
	"errors"
	"net/http"

	"chart-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var errNoCommandSink = errors.New("chart is not accepting commands")

// clientFrame is a reply addressed to a single viewer.
type clientFrame struct {
	client *Client
	frame  *models.MChartFrame
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

func (s *ChartServer) startHub() {
	s.hubOnce.Do(func() {
		go s.handleWebsockets()
	})
}

// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *ChartServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.viewers.Store(int64(len(s.clients)))
			// Replay the full chart on connect
			client.send <- s.initialFrame()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.viewers.Store(int64(len(s.clients)))
			}

		case msg := <-s.unicast:
			if _, ok := s.clients[msg.client]; ok {
				select {
				case msg.client.send <- msg.frame:
				default:
				}
			}

		case frame := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- frame:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					s.Logger.Warning("Viewer %s too slow, disconnecting", client.conn.RemoteAddr())
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.viewers.Store(int64(len(s.clients)))

		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.viewers.Store(0)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// Broadcast queues a frame for every viewer and reports whether it was queued.
// It never blocks: when the queue is full the frame is dropped.
func (s *ChartServer) Broadcast(frame *models.MChartFrame) bool {
	select {
	case s.broadcast <- frame:
		return true
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s frame", frame.Type)
		return false
	}
}

// -----------------------------------------------------------------------------

// publish broadcasts frame, or the full cached state instead once a previous
// frame was dropped, so viewers converge after an overflow.
func (s *ChartServer) publish(frame *models.MChartFrame) {
	if s.resync.Load() {
		frame = s.initialFrame()
	}
	s.resync.Store(!s.Broadcast(frame))
}

// -----------------------------------------------------------------------------

func (s *ChartServer) initialFrame() *models.MChartFrame {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	frame := newFrame(models.FrameInitial)
	selection := s.state.Selection
	status := s.state.Status
	size := s.state.Size
	frame.Selection = &selection
	frame.Candles = copyCandles(s.state.Candles)
	frame.Status = &status
	frame.Size = &size
	frame.History = s.state.History
	return frame
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *ChartServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}
	s.Logger.Info("Viewer connected from %s", client.remote)

	go client.deliver()
	go client.listen()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleCommand forwards a viewer command to the command sink and answers a
// rejected one with an ERROR frame to that viewer only.
func (s *ChartServer) handleCommand(client *Client, cmd models.MViewerCommand) {
	err := s.dispatch(cmd)
	if err == nil {
		return
	}

	s.Logger.Info("Viewer command %q rejected: %v", cmd.Command, err)
	frame := newFrame(models.FrameError)
	frame.Error = err.Error()
	select {
	case s.unicast <- clientFrame{client: client, frame: frame}:
	case <-s.quit:
	}
}

// -----------------------------------------------------------------------------

func (s *ChartServer) dispatch(cmd models.MViewerCommand) error {
	sink := s.commandSink()
	if sink == nil {
		return errNoCommandSink
	}

	switch cmd.Command {
	case models.CommandSelect:
		sel, err := models.NewSelection(cmd.Symbol, cmd.Interval)
		if err != nil {
			return err
		}
		return sink.Select(sel)
	case models.CommandResize:
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return errors.New("resize needs a positive width and height")
		}
		return sink.Resize(models.MSurfaceSize{Width: cmd.Width, Height: cmd.Height})
	}
	return errors.New("unknown command " + cmd.Command)
}
