package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"chart-observer/src/interfaces"
	"chart-observer/src/logger"
	"chart-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// ChartServer
// -----------------------------------------------------------------------------

// ChartServer is the render surface: it caches the chart state and fans
// frames out to browser viewers connected over WebSocket.
type ChartServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	engine     *gin.Engine
	httpServer *http.Server

	// viewer commands go here once wired
	commands atomic.Pointer[commandSink]

	// WebSocket clients, owned by the hub goroutine
	clients    map[*Client]struct{}
	broadcast  chan *models.MChartFrame
	register   chan *Client
	unregister chan *Client
	unicast    chan clientFrame
	quit       chan struct{}
	hubOnce    sync.Once
	stopOnce   sync.Once
	viewers    atomic.Int64
	resync     atomic.Bool

	// Local cache
	state      models.MChartState
	stateMutex sync.RWMutex
}

type commandSink struct {
	interfaces.ICommandSink
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewChartServer(cfg *models.MConfig, log *logger.Logger) *ChartServer {
	if log == nil {
		log = logger.NewLogger(cfg, "ChartServer")
	}
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ChartServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered so the controller loop never waits on viewers
		broadcast:  make(chan *models.MChartFrame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		unicast:    make(chan clientFrame, 16),
		quit:       make(chan struct{}),
		state: models.MChartState{
			Status: models.MSessionStatus{State: models.SessionConnecting},
		},
	}
	s.engine.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		s.engine.Use(gin.Logger())
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// SetCommandSink routes viewer commands to sink.
func (s *ChartServer) SetCommandSink(sink interfaces.ICommandSink) {
	if sink == nil {
		s.commands.Store(nil)
		return
	}
	s.commands.Store(&commandSink{sink})
}

func (s *ChartServer) commandSink() interfaces.ICommandSink {
	if cs := s.commands.Load(); cs != nil {
		return cs.ICommandSink
	}
	return nil
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ChartServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/chart", s.getChart)
	api.GET("/config", s.getConfig)
	api.GET("/health", s.getHealth)
	api.POST("/selection", s.postSelection)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler returns the HTTP handler with the hub running.
func (s *ChartServer) Handler() http.Handler {
	s.startHub()
	return s.engine
}

// -----------------------------------------------------------------------------

func (s *ChartServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting chart server on %s", addr)

	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and disconnects all viewers.
func (s *ChartServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.stopOnce.Do(func() { close(s.quit) })
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *ChartServer) getChart(c *gin.Context) {
	s.stateMutex.RLock()
	state := s.state
	state.Candles = copyCandles(s.state.Candles)
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, state)
}

// -----------------------------------------------------------------------------

func (s *ChartServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"intervals": models.SupportedIntervals,
		"default_selection": gin.H{
			"symbol":   s.Config.Chart.DefaultSymbol,
			"interval": s.Config.Chart.DefaultInterval,
		},
		"history_limit": s.Config.Chart.HistoryLimit,
	})
}

// -----------------------------------------------------------------------------

func (s *ChartServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	session := s.state.Status.State
	timestamp := s.state.Timestamp
	selection := s.state.Selection
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.viewers.Load(),
		"session":       session,
		"selection":     selection,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *ChartServer) postSelection(c *gin.Context) {
	var body struct {
		Symbol   string `json:"symbol" binding:"required"`
		Interval string `json:"interval" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.dispatch(models.MViewerCommand{Command: models.CommandSelect, Symbol: body.Symbol, Interval: body.Interval}); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errNoCommandSink) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// -----------------------------------------------------------------------------
// Render surface
// -----------------------------------------------------------------------------

// SetData replaces the displayed series.
func (s *ChartServer) SetData(selection models.MSelection, candles []models.MCandle, history bool) {
	frame := newFrame(models.FrameSet)
	frame.Selection = &selection
	frame.Candles = copyCandles(candles)
	frame.History = history

	s.stateMutex.Lock()
	s.state.Selection = selection
	s.state.Candles = copyCandles(candles)
	s.state.History = history
	s.state.Timestamp = frame.Timestamp
	s.stateMutex.Unlock()

	s.publish(frame)
}

// -----------------------------------------------------------------------------

// Update appends or revises the last displayed candle.
func (s *ChartServer) Update(candle models.MCandle) {
	frame := newFrame(models.FrameUpdate)
	frame.Candle = &candle

	s.stateMutex.Lock()
	s.state.Candles = mergeCandle(s.state.Candles, candle, s.Config.Chart.MaxCandles)
	s.state.Timestamp = frame.Timestamp
	s.stateMutex.Unlock()

	s.publish(frame)
}

// -----------------------------------------------------------------------------

// SetStatus reflects session connectivity.
func (s *ChartServer) SetStatus(status models.MSessionStatus) {
	if status.Err != nil && status.Error == "" {
		status.Error = status.Err.Error()
	}
	frame := newFrame(models.FrameStatus)
	frame.Status = &status

	s.stateMutex.Lock()
	s.state.Status = status
	s.stateMutex.Unlock()

	s.publish(frame)
}

// -----------------------------------------------------------------------------

// Resize propagates a surface size change to every viewer.
func (s *ChartServer) Resize(size models.MSurfaceSize) {
	frame := newFrame(models.FrameResize)
	frame.Size = &size

	s.stateMutex.Lock()
	s.state.Size = size
	s.stateMutex.Unlock()

	s.publish(frame)
}
