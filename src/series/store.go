// Package series holds the authoritative, strictly time-ordered candle sequence
// for the active selection. It performs no I/O and is not safe for concurrent use:
// the lifecycle controller mutates it from its dispatch loop only.
package series

import (
	"chart-observer/src/logger"
	"chart-observer/src/models"
)

// -----------------------------------------------------------------------------

// Store keeps a series strictly ascending by Time with no duplicate keys.
type Store struct {
	candles    []models.MCandle
	maxCandles int
	stats      models.MSeriesStats
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// NewStore creates an empty store. maxCandles <= 0 disables trimming.
func NewStore(maxCandles int, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewLogger(nil, "SeriesStore")
	}
	return &Store{
		maxCandles: maxCandles,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Reset clears the series and its counters.
func (s *Store) Reset() {
	s.candles = s.candles[:0]
	s.stats = models.MSeriesStats{}
}

// -----------------------------------------------------------------------------

// LoadSnapshot merges a historical batch into the series.
//
// Candles already received from the stream are kept; on an equal key the
// streamed candle wins because it is the newer revision of that bar.
// Snapshot elements that are not strictly ascending are skipped and counted
// as drops rather than reordered.
func (s *Store) LoadSnapshot(snapshot []models.MCandle) {
	clean := make([]models.MCandle, 0, len(snapshot))
	for _, c := range snapshot {
		if n := len(clean); n > 0 && c.Time <= clean[n-1].Time {
			s.stats.Dropped++
			continue
		}
		clean = append(clean, c)
	}
	if skipped := len(snapshot) - len(clean); skipped > 0 {
		s.Logger.Warning("Snapshot not strictly ascending, skipped %d candles", skipped)
	}
	s.stats.SnapshotSize = len(clean)

	if len(s.candles) == 0 {
		s.candles = clean
		s.trim()
		return
	}

	merged := make([]models.MCandle, 0, len(clean)+len(s.candles))
	i, j := 0, 0
	for i < len(clean) && j < len(s.candles) {
		hist, live := clean[i], s.candles[j]
		switch {
		case hist.Time < live.Time:
			merged = append(merged, hist)
			i++
		case hist.Time > live.Time:
			merged = append(merged, live)
			j++
		default:
			merged = append(merged, live)
			i++
			j++
		}
	}
	merged = append(merged, clean[i:]...)
	merged = append(merged, s.candles[j:]...)

	s.candles = merged
	s.trim()
}

// -----------------------------------------------------------------------------

// ApplyUpdate merges one candle with ordered-append-or-replace semantics.
// Older candles are dropped; this is expected around reconnects and never an error.
func (s *Store) ApplyUpdate(c models.MCandle) models.MSeriesChange {
	n := len(s.candles)
	switch {
	case n == 0 || c.Time > s.candles[n-1].Time:
		s.candles = append(s.candles, c)
		s.stats.Appended++
		s.trim()
		return models.MSeriesChange{Kind: models.ChangeAppended, Candle: c}
	case c.Time == s.candles[n-1].Time:
		s.candles[n-1] = c
		s.stats.Replaced++
		return models.MSeriesChange{Kind: models.ChangeReplaced, Candle: c}
	default:
		s.stats.Dropped++
		s.Logger.Debug("Dropped stale candle %d (tail %d)", c.Time, s.candles[n-1].Time)
		return models.MSeriesChange{Kind: models.ChangeDropped, Candle: c}
	}
}

// -----------------------------------------------------------------------------

// Current returns a read-only view of the series without copying.
// The view is valid until the next mutation of the store.
func (s *Store) Current() View {
	return View{candles: s.candles[:len(s.candles):len(s.candles)]}
}

// -----------------------------------------------------------------------------

// Stats returns the diagnostic counters since the last Reset.
func (s *Store) Stats() models.MSeriesStats {
	return s.stats
}

// -----------------------------------------------------------------------------

// Release frees the backing storage.
func (s *Store) Release() {
	s.candles = nil
	s.stats = models.MSeriesStats{}
}

// -----------------------------------------------------------------------------

// trim drops the oldest candles beyond maxCandles.
func (s *Store) trim() {
	if s.maxCandles <= 0 || len(s.candles) <= s.maxCandles {
		return
	}
	excess := len(s.candles) - s.maxCandles
	s.stats.Trimmed += int64(excess)

	// compact once the dead prefix dominates the backing array
	if cap(s.candles) > 2*s.maxCandles {
		kept := make([]models.MCandle, s.maxCandles, s.maxCandles+s.maxCandles/2)
		copy(kept, s.candles[excess:])
		s.candles = kept
		return
	}
	s.candles = s.candles[excess:]
}
