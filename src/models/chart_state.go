package models

// -----------------------------------------------------------------------------
// Chart server state (what browser viewers see)
// -----------------------------------------------------------------------------

// Frame types pushed to viewers.
const (
	FrameInitial = "INITIAL"
	FrameSet     = "SET"
	FrameUpdate  = "UPDATE"
	FrameStatus  = "STATUS"
	FrameResize  = "RESIZE"
	FrameError   = "ERROR"
)

// MSurfaceSize is the render surface size in pixels.
type MSurfaceSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MChartState is the cached state served to new viewers.
type MChartState struct {
	Selection MSelection     `json:"selection"`
	Candles   []MCandle      `json:"candles"`
	Status    MSessionStatus `json:"status"`
	History   bool           `json:"history"`
	Size      MSurfaceSize   `json:"size"`
	Timestamp int64          `json:"timestamp"`
}

// MChartFrame is one message pushed to viewers.
type MChartFrame struct {
	Type      string          `json:"type"`
	Selection *MSelection     `json:"selection,omitempty"`
	Candles   []MCandle       `json:"candles,omitempty"`
	Candle    *MCandle        `json:"candle,omitempty"`
	Status    *MSessionStatus `json:"status,omitempty"`
	Size      *MSurfaceSize   `json:"size,omitempty"`
	History   bool            `json:"history,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Viewer commands
// -----------------------------------------------------------------------------

// Viewer command names.
const (
	CommandSelect = "select"
	CommandResize = "resize"
)

// MViewerCommand is a message sent by a viewer over the chart socket.
type MViewerCommand struct {
	Command  string `json:"command"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
