package models

// MCandle represents one OHLC bar for a fixed time bucket.
// Time is epoch seconds aligned to the interval boundary and is the unique key within a series.
type MCandle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// -----------------------------------------------------------------------------

// ChangeKind describes how a merge affected the series.
type ChangeKind int

const (
	ChangeAppended ChangeKind = iota
	ChangeReplaced
	ChangeDropped
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppended:
		return "appended"
	case ChangeReplaced:
		return "replaced"
	case ChangeDropped:
		return "dropped"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------

// MSeriesChange is the incremental result of merging one candle.
type MSeriesChange struct {
	Kind   ChangeKind
	Candle MCandle
}

// Visible reports whether the change must be projected to the renderer.
func (c MSeriesChange) Visible() bool {
	return c.Kind == ChangeAppended || c.Kind == ChangeReplaced
}

// -----------------------------------------------------------------------------

// MSeriesStats holds diagnostic counters of a series store.
type MSeriesStats struct {
	Appended     int64 `json:"appended"`
	Replaced     int64 `json:"replaced"`
	Dropped      int64 `json:"dropped"`
	Trimmed      int64 `json:"trimmed"`
	SnapshotSize int   `json:"snapshot_size"`
}
