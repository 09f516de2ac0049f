package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"chart-observer/src/interfaces"
	"chart-observer/src/models"
)

// -----------------------------------------------------------------------------
// fakeLoader blocks each Load until the test releases it.
// -----------------------------------------------------------------------------

type loadResult struct {
	candles []models.MCandle
	err     error
}

type loadRequest struct {
	selection models.MSelection
	reply     chan loadResult
}

type fakeLoader struct {
	requests chan loadRequest
	calls    atomic.Int64
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{requests: make(chan loadRequest, 16)}
}

func (f *fakeLoader) Load(ctx context.Context, sel models.MSelection, limit int) ([]models.MCandle, error) {
	f.calls.Add(1)
	req := loadRequest{selection: sel, reply: make(chan loadResult, 1)}
	f.requests <- req
	select {
	case res := <-req.reply:
		return res.candles, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// fakeStream records filters and lets tests drive session events.
// -----------------------------------------------------------------------------

type fakeSubscription struct {
	owner     *fakeStream
	selection models.MSelection
	handler   func(models.MKlineEvent)
}

func (s *fakeSubscription) Selection() models.MSelection { return s.selection }

func (s *fakeSubscription) Active() bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.owner.current == s
}

func (s *fakeSubscription) Unsubscribe() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.current == s {
		s.owner.current = nil
	}
}

type fakeStream struct {
	mu       sync.Mutex
	current  *fakeSubscription
	all      []*fakeSubscription
	onStatus func(models.MSessionStatus)
	openErr  error
	opens    atomic.Int64
	closes   atomic.Int64
}

func (f *fakeStream) Open(ctx context.Context, onStatus func(models.MSessionStatus)) error {
	f.opens.Add(1)
	f.mu.Lock()
	err := f.openErr
	if err == nil {
		f.onStatus = onStatus
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	onStatus(models.MSessionStatus{State: models.SessionConnected})
	return nil
}

func (f *fakeStream) SetFilter(sel models.MSelection, handler func(models.MKlineEvent)) interfaces.ISubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{owner: f, selection: sel, handler: handler}
	f.current = sub
	f.all = append(f.all, sub)
	return sub
}

func (f *fakeStream) Close() error {
	f.closes.Add(1)
	f.mu.Lock()
	cb := f.onStatus
	f.onStatus = nil
	f.mu.Unlock()
	if cb != nil {
		go cb(models.MSessionStatus{State: models.SessionClosed})
	}
	return nil
}

func (f *fakeStream) setOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

// emit delivers an event the way the real subscriber does: to the current filter only.
func (f *fakeStream) emit(ev models.MKlineEvent) {
	f.mu.Lock()
	sub := f.current
	f.mu.Unlock()
	if sub != nil && sub.selection.Matches(ev.Symbol, ev.Interval) {
		sub.handler(ev)
	}
}

// emitTo delivers an event to a specific, possibly stale, subscription.
func (f *fakeStream) emitTo(i int, ev models.MKlineEvent) {
	f.mu.Lock()
	sub := f.all[i]
	f.mu.Unlock()
	sub.handler(ev)
}

func (f *fakeStream) drop(err error) {
	f.mu.Lock()
	cb := f.onStatus
	f.onStatus = nil
	f.mu.Unlock()
	cb(models.MSessionStatus{State: models.SessionDisconnected, Err: err})
}

func (f *fakeStream) filters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

// -----------------------------------------------------------------------------
// recordingSurface captures what the controller projects.
// -----------------------------------------------------------------------------

type setDataCall struct {
	selection models.MSelection
	candles   []models.MCandle
	history   bool
}

type recordingSurface struct {
	mu       sync.Mutex
	sets     []setDataCall
	updates  []models.MCandle
	statuses []models.MSessionStatus
	sizes    []models.MSurfaceSize
}

func (r *recordingSurface) SetData(sel models.MSelection, candles []models.MCandle, history bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, setDataCall{sel, candles, history})
}

func (r *recordingSurface) Update(c models.MCandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, c)
}

func (r *recordingSurface) SetStatus(st models.MSessionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
}

func (r *recordingSurface) Resize(size models.MSurfaceSize) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, size)
}

func (r *recordingSurface) lastSet() (setDataCall, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sets) == 0 {
		return setDataCall{}, 0
	}
	return r.sets[len(r.sets)-1], len(r.sets)
}

func (r *recordingSurface) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recordingSurface) lastStatus() models.MSessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return models.MSessionStatus{}
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recordingSurface) countStatus(state models.SessionState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.statuses {
		if st.State == state {
			n++
		}
	}
	return n
}
