package backendsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chart-observer/src/logger"
	"chart-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 2 * time.Second
	defaultLimit = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server exposes a Market over the backend's REST and stream endpoints.
type Server struct {
	Config     *models.MConfig
	Market     *Market
	Logger     *logger.Logger
	Now        func() time.Time
	engine     *gin.Engine
	hub        *streamHub
	httpServer *http.Server
}

// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewLogger(cfg, "BackendSim")
	}
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config: cfg,
		Market: NewMarket(cfg.Sim.Symbols, cfg.Sim.Seed, cfg.Sim.StartPrice, cfg.Sim.HistoryMaxLimit, time.Now()),
		Logger: log,
		Now:    time.Now,
		engine: gin.New(),
		hub:    newStreamHub(),
	}
	s.engine.Use(gin.Recovery())

	api := s.engine.Group("/api/v1")
	api.GET("/symbols", s.getSymbols)
	api.GET("/klines/:symbol", s.getKlines)
	s.engine.GET("/ws/market_data", s.handleStream)
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "backend simulator is running"})
	})
	return s
}

// -----------------------------------------------------------------------------

func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves HTTP until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Sim.Host, s.Config.Sim.Port)
	s.Logger.Info("Starting backend simulator on %s", addr)

	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------

// Run ticks the market every tick_ms and broadcasts the resulting klines.
func (s *Server) Run(ctx context.Context) {
	interval := time.Duration(s.Config.Sim.TickMillis) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// -----------------------------------------------------------------------------

// Tick advances the market once and broadcasts every kline.
func (s *Server) Tick() {
	for _, ev := range s.Market.Tick(s.Now()) {
		frame, err := json.Marshal(ev)
		if err != nil {
			s.Logger.Error("Encoding kline: %v", err)
			continue
		}
		if lagging := s.hub.Broadcast(frame); len(lagging) > 0 {
			s.Logger.Warning("Disconnected %d lagging stream sessions", len(lagging))
		}
	}
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func (s *Server) getSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.Market.Symbols()})
}

// -----------------------------------------------------------------------------

// getKlines reports failures in the body with a 200 status, like the real backend.
func (s *Server) getKlines(c *gin.Context) {
	symbol := c.Param("symbol")
	sel, err := models.NewSelection(symbol, c.DefaultQuery("interval", string(models.Interval5m)))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusOK, gin.H{"error": "invalid limit " + strconv.Quote(raw)})
			return
		}
	}

	candles, ok := s.Market.History(sel, limit)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": "Invalid symbol " + sel.Symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sel.Symbol, "data": candles})
}

// -----------------------------------------------------------------------------
// Stream
// -----------------------------------------------------------------------------

func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade stream: %v", err)
		return
	}

	id, send := s.hub.Subscribe()
	s.Logger.Info("Stream session %d opened from %s", id, conn.RemoteAddr())

	go s.writeLoop(conn, send)
	go s.readLoop(conn, id)
}

// -----------------------------------------------------------------------------

func (s *Server) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()
	for frame := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// -----------------------------------------------------------------------------

// readLoop answers the client's text keepalive.
func (s *Server) readLoop(conn *websocket.Conn, id int64) {
	defer func() {
		s.hub.Unsubscribe(id)
		s.Logger.Info("Stream session %d closed", id)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if strings.TrimSpace(string(msg)) == "ping" {
			s.hub.Send(id, []byte("pong"))
		}
	}
}
