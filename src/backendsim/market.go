// Package backendsim is a development stand-in for the trading backend. It
// serves the same REST and stream contract with a deterministic random walk.
package backendsim

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"chart-observer/src/models"
	"chart-observer/src/utils"
)

// -----------------------------------------------------------------------------

type walk struct {
	selection models.MSelection
	rng       *rand.Rand
	history   *utils.RingBuffer
}

// Market holds one random-walk series per symbol and interval.
type Market struct {
	mu      sync.Mutex
	symbols []string
	series  map[models.MSelection]*walk
}

// -----------------------------------------------------------------------------

// NewMarket seeds every series with maxHistory closed candles ending at now.
func NewMarket(symbols []string, seed int64, startPrice float64, maxHistory int, now time.Time) *Market {
	if startPrice <= 0 {
		startPrice = 100
	}
	if maxHistory <= 0 {
		maxHistory = 1500
	}

	m := &Market{
		series: make(map[models.MSelection]*walk),
	}
	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		m.symbols = append(m.symbols, symbol)

		for _, iv := range models.SupportedIntervals {
			sel := models.MSelection{Symbol: symbol, Interval: iv}
			w := &walk{selection: sel, rng: rand.New(rand.NewSource(seed ^ int64(hashOf(sel.String()))))}
			w.seed(startPrice, maxHistory, now)
			m.series[sel] = w
		}
	}
	return m
}

// -----------------------------------------------------------------------------

func hashOf(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// -----------------------------------------------------------------------------

func (w *walk) seed(price float64, n int, now time.Time) {
	width := w.selection.Interval.Seconds()
	current := w.selection.Interval.Align(now.Unix())
	start := current - int64(n-1)*width

	w.history = utils.NewRingBuffer(n)
	for ts := start; ts <= current; ts += width {
		c := w.bar(ts, price)
		w.history.Append(c)
		price = c.Close
	}
}

// -----------------------------------------------------------------------------

// bar draws a full candle starting at open.
func (w *walk) bar(ts int64, open float64) models.MCandle {
	c := models.MCandle{Time: ts, Open: open, High: open, Low: open, Close: open}
	for i := 0; i < 4; i++ {
		w.step(&c)
	}
	return c
}

// -----------------------------------------------------------------------------

func (w *walk) step(c *models.MCandle) {
	next := c.Close * (1 + w.rng.NormFloat64()*0.002)
	next = math.Max(next, 0.0001)
	next = math.Round(next*10000) / 10000

	c.Close = next
	c.High = math.Max(c.High, next)
	c.Low = math.Min(c.Low, next)
}

// -----------------------------------------------------------------------------

// Symbols lists the simulated instruments.
func (m *Market) Symbols() []string {
	return append([]string(nil), m.symbols...)
}

// -----------------------------------------------------------------------------

// History returns the newest limit candles for a selection.
func (m *Market) History(sel models.MSelection, limit int) ([]models.MCandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.series[sel]
	if !ok {
		return nil, false
	}
	if limit <= 0 {
		return w.history.GetAll(), true
	}
	return w.history.GetLatest(limit), true
}

// -----------------------------------------------------------------------------

// Tick advances every series to now. A new bucket opens a candle at the
// previous close; otherwise the forming candle is revised.
func (m *Market) Tick(now time.Time) []models.MKlineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]models.MKlineEvent, 0, len(m.series))
	for _, symbol := range m.symbols {
		for _, iv := range models.SupportedIntervals {
			w := m.series[models.MSelection{Symbol: symbol, Interval: iv}]
			events = append(events, w.advance(now))
		}
	}
	return events
}

// -----------------------------------------------------------------------------

func (w *walk) advance(now time.Time) models.MKlineEvent {
	bucket := w.selection.Interval.Align(now.Unix())
	last := w.history.Last()

	if bucket > last.Time {
		c := models.MCandle{Time: bucket, Open: last.Close, High: last.Close, Low: last.Close, Close: last.Close}
		w.step(&c)
		w.history.Append(c)
	} else {
		w.step(last)
	}

	return models.NewKlineEvent(w.selection, *w.history.Last())
}
