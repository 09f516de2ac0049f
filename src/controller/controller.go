// Package controller binds the active selection to the series store, the
// snapshot loader, the stream subscriber and the render surface.
//
// All controller state and every store mutation is confined to a single
// dispatch goroutine started by Run. Network work runs on its own goroutines
// and posts its result back to that loop, where it is checked against the
// current selection and generation before being applied.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"chart-observer/src/helpers"
	"chart-observer/src/interfaces"
	"chart-observer/src/logger"
	"chart-observer/src/models"
	"chart-observer/src/series"
)

var (
	ErrDisposed       = errors.New("controller disposed")
	errAlreadyRunning = errors.New("controller already running")
)

const queueSize = 256

// -----------------------------------------------------------------------------

type Controller struct {
	Store    *series.Store
	Loader   interfaces.ISnapshotLoader
	Stream   interfaces.IStreamSubscriber
	Surface  interfaces.IRenderSurface
	Logger   *logger.Logger
	Backoff  helpers.Backoff
	Limit    int
	Watchers []interfaces.ISessionObserver

	queue chan func()
	done  chan struct{}
	ctx   context.Context
	stop  context.CancelFunc

	// guards the hand-over between Run starting and an early Dispose
	runMu   sync.Mutex
	started bool

	// owned by the dispatch loop
	state        State
	selection    models.MSelection
	subscription interfaces.ISubscription
	generation   uint64
	fetchSeq     uint64
	fetchCancel  context.CancelFunc
	session      models.MSessionStatus
	connected    bool
	everOpened   bool
	dialing      bool
	attempt      int
	reconnect    *time.Timer
}

// -----------------------------------------------------------------------------

func NewController(
	cfg *models.MConfig,
	store *series.Store,
	loader interfaces.ISnapshotLoader,
	stream interfaces.IStreamSubscriber,
	surface interfaces.IRenderSurface,
	log *logger.Logger,
) *Controller {
	if log == nil {
		log = logger.NewLogger(cfg, "Controller")
	}
	ctx, stop := context.WithCancel(context.Background())

	return &Controller{
		Store:   store,
		Loader:  loader,
		Stream:  stream,
		Surface: surface,
		Logger:  log,
		Backoff: helpers.Backoff{
			Base:        time.Duration(cfg.Stream.ReconnectBaseMs) * time.Millisecond,
			Max:         time.Duration(cfg.Stream.ReconnectMaxMs) * time.Millisecond,
			MaxAttempts: cfg.Stream.ReconnectMaxTries,
		},
		Limit:   cfg.Chart.HistoryLimit,
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		stop:    stop,
		session: models.MSessionStatus{State: models.SessionConnecting},
	}
}

// -----------------------------------------------------------------------------
// Dispatch loop
// -----------------------------------------------------------------------------

// Run opens the stream session and processes queued work until the controller
// is disposed or ctx is cancelled. It returns ErrDisposed when Dispose came first.
func (c *Controller) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.started {
		c.runMu.Unlock()
		return errAlreadyRunning
	}
	if c.state == StateDisposed {
		c.runMu.Unlock()
		return ErrDisposed
	}
	c.started = true
	c.runMu.Unlock()
	defer close(c.done)

	c.Logger.Info("Controller started")
	c.connect()

	for {
		select {
		case fn := <-c.queue:
			fn()
			if c.state == StateDisposed {
				c.Logger.Info("Controller stopped")
				return nil
			}
		case <-ctx.Done():
			c.dispose()
			c.Logger.Info("Controller stopped: %v", ctx.Err())
			return nil
		}
	}
}

// -----------------------------------------------------------------------------

// post queues fn on the dispatch loop. It reports false once the loop has exited.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.queue <- fn:
		return true
	case <-c.done:
		return false
	}
}

// -----------------------------------------------------------------------------

// call runs fn on the dispatch loop and waits for it.
func (c *Controller) call(fn func() error) error {
	reply := make(chan error, 1)
	if !c.post(func() { reply <- fn() }) {
		return ErrDisposed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrDisposed
		}
	}
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// Select makes sel the active selection. Selecting the current selection is a no-op.
func (c *Controller) Select(sel models.MSelection) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	return c.call(func() error {
		if c.state == StateDisposed {
			return ErrDisposed
		}
		c.activate(sel)
		return nil
	})
}

// -----------------------------------------------------------------------------

// Resize forwards a surface size change.
func (c *Controller) Resize(size models.MSurfaceSize) error {
	return c.call(func() error {
		if c.state == StateDisposed {
			return ErrDisposed
		}
		c.Surface.Resize(size)
		return nil
	})
}

// -----------------------------------------------------------------------------

// Dispose tears the controller down. It is terminal and idempotent, and safe
// to call whether or not Run was ever started.
func (c *Controller) Dispose() {
	c.runMu.Lock()
	if !c.started {
		if c.state != StateDisposed {
			c.dispose()
			close(c.done)
		}
		c.runMu.Unlock()
		return
	}
	c.runMu.Unlock()

	c.call(func() error {
		c.dispose()
		return nil
	})
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Selection returns the active selection and lifecycle state.
func (c *Controller) Selection() (models.MSelection, State) {
	var sel models.MSelection
	state := StateDisposed
	c.call(func() error {
		sel, state = c.selection, c.state
		return nil
	})
	return sel, state
}

// -----------------------------------------------------------------------------

// Status returns the last known stream session status.
func (c *Controller) Status() models.MSessionStatus {
	status := models.MSessionStatus{State: models.SessionClosed}
	c.call(func() error {
		status = c.session
		return nil
	})
	return status
}

// -----------------------------------------------------------------------------

// Series copies the current series out of the store.
func (c *Controller) Series() ([]models.MCandle, models.MSeriesStats) {
	var candles []models.MCandle
	var stats models.MSeriesStats
	c.call(func() error {
		candles = c.Store.Current().Candles()
		stats = c.Store.Stats()
		return nil
	})
	return candles, stats
}

// -----------------------------------------------------------------------------
// Selection lifecycle (loop only)
// -----------------------------------------------------------------------------

func (c *Controller) activate(sel models.MSelection) {
	if c.state == StateActive && c.selection == sel {
		c.Logger.Debug("Selection %s already active", sel)
		return
	}

	if c.subscription != nil {
		c.subscription.Unsubscribe()
		c.subscription = nil
	}
	c.cancelFetch()
	c.Store.Reset()

	c.state = StateActive
	c.selection = sel
	c.generation++
	gen := c.generation

	c.subscription = c.Stream.SetFilter(sel, func(ev models.MKlineEvent) {
		c.post(func() { c.applyEvent(gen, ev) })
	})

	c.Logger.Info("Selection changed to %s", sel)
	c.Surface.SetData(sel, nil, false)
	c.loadSnapshot()
}

// -----------------------------------------------------------------------------

func (c *Controller) loadSnapshot() {
	c.cancelFetch()
	c.fetchSeq++

	gen, seq, sel, limit := c.generation, c.fetchSeq, c.selection, c.Limit
	ctx, cancel := context.WithCancel(c.ctx)
	c.fetchCancel = cancel

	go func() {
		candles, err := c.Loader.Load(ctx, sel, limit)
		c.post(func() { c.applySnapshot(gen, seq, sel, candles, err) })
	}()
}

// -----------------------------------------------------------------------------

func (c *Controller) applySnapshot(gen, seq uint64, sel models.MSelection, candles []models.MCandle, err error) {
	if c.state != StateActive || gen != c.generation || seq != c.fetchSeq || sel != c.selection {
		c.Logger.Debug("Discarding stale snapshot for %s", sel)
		return
	}
	c.fetchCancel = nil

	if err != nil {
		var fetchErr *helpers.FetchError
		if errors.As(err, &fetchErr) {
			c.Logger.Warning("No history for %s (%s): %v", sel, fetchErr.Reason, err)
		} else {
			c.Logger.Warning("No history for %s: %v", sel, err)
		}
		c.Surface.SetData(sel, c.Store.Current().Candles(), false)
		return
	}

	c.Store.LoadSnapshot(candles)
	c.Logger.Info("Snapshot applied for %s: %d candles, series %d", sel, len(candles), c.Store.Current().Len())
	c.Surface.SetData(sel, c.Store.Current().Candles(), true)
}

// -----------------------------------------------------------------------------

func (c *Controller) applyEvent(gen uint64, ev models.MKlineEvent) {
	if c.state != StateActive || gen != c.generation || !c.selection.Matches(ev.Symbol, ev.Interval) {
		return
	}
	if c.subscription == nil || !c.subscription.Active() {
		return
	}

	change := c.Store.ApplyUpdate(ev.Candle())
	if change.Visible() {
		c.Surface.Update(change.Candle)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) cancelFetch() {
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
}

// -----------------------------------------------------------------------------
// Session lifecycle (loop only)
// -----------------------------------------------------------------------------

func (c *Controller) connect() {
	if c.state == StateDisposed || c.dialing || c.connected {
		return
	}
	c.dialing = true
	c.reconnect = nil

	go func() {
		err := c.Stream.Open(c.ctx, c.onSessionStatus)
		c.post(func() { c.dialed(err) })
	}()
}

// -----------------------------------------------------------------------------

func (c *Controller) dialed(err error) {
	c.dialing = false
	if err == nil || c.state == StateDisposed {
		return
	}

	c.Logger.Warning("Stream dial failed (attempt %d): %v", c.attempt, err)
	c.setSession(models.MSessionStatus{State: models.SessionDisconnected, Err: err, Error: err.Error(), Attempt: c.attempt})
	c.scheduleReconnect()
}

// -----------------------------------------------------------------------------

// onSessionStatus is called by the subscriber from its own goroutines.
func (c *Controller) onSessionStatus(status models.MSessionStatus) {
	c.post(func() { c.sessionChanged(status) })
}

// -----------------------------------------------------------------------------

func (c *Controller) sessionChanged(status models.MSessionStatus) {
	if c.state == StateDisposed {
		return
	}

	switch status.State {
	case models.SessionConnected:
		reconnected := c.everOpened
		c.connected, c.everOpened = true, true
		status.Attempt = c.attempt
		c.attempt = 0
		c.setSession(status)

		if reconnected && c.state == StateActive {
			c.Logger.Info("Stream reconnected, backfilling %s", c.selection)
			c.loadSnapshot()
		}

	case models.SessionDisconnected:
		c.connected = false
		status.Attempt = c.attempt
		c.setSession(status)
		c.scheduleReconnect()

	case models.SessionClosed:
		c.connected = false
		c.setSession(status)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) scheduleReconnect() {
	if c.reconnect != nil || c.state == StateDisposed {
		return
	}
	if c.Backoff.Exhausted(c.attempt) {
		c.Logger.Error("Giving up on stream after %d reconnect attempts", c.attempt)
		return
	}

	delay := c.Backoff.Delay(c.attempt)
	c.attempt++
	c.Logger.Info("Reconnecting stream in %v (attempt %d)", delay, c.attempt)

	c.reconnect = time.AfterFunc(delay, func() {
		c.post(c.connect)
	})
}

// -----------------------------------------------------------------------------

func (c *Controller) setSession(status models.MSessionStatus) {
	c.session = status
	c.Surface.SetStatus(status)
	for _, w := range c.Watchers {
		w.SessionChanged(status)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) dispose() {
	if c.state == StateDisposed {
		return
	}
	c.state = StateDisposed

	if c.subscription != nil {
		c.subscription.Unsubscribe()
		c.subscription = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.cancelFetch()
	c.stop()

	if err := c.Stream.Close(); err != nil {
		c.Logger.Warning("Closing stream session: %v", err)
	}
	c.Store.Release()
	c.connected = false
	c.setSession(models.MSessionStatus{State: models.SessionClosed})
	c.Logger.Info("Controller disposed")
}
