package models

// -----------------------------------------------------------------------------
// Stream wire format
// -----------------------------------------------------------------------------

// EventTypeKline tags a candle update frame.
const EventTypeKline = "kline"

// MKlineEvent is one decoded stream frame.
type MKlineEvent struct {
	Type     string  `json:"type"`
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	Time     int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	IsFinal  bool    `json:"is_final"`
}

// Candle projects the OHLC part of the event.
func (e MKlineEvent) Candle() MCandle {
	return MCandle{Time: e.Time, Open: e.Open, High: e.High, Low: e.Low, Close: e.Close}
}

// NewKlineEvent builds a kline frame for a selection.
func NewKlineEvent(sel MSelection, c MCandle) MKlineEvent {
	return MKlineEvent{
		Type:     EventTypeKline,
		Symbol:   sel.Symbol,
		Interval: string(sel.Interval),
		Time:     c.Time,
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
	}
}

// -----------------------------------------------------------------------------
// Session status
// -----------------------------------------------------------------------------

// SessionState is the connectivity of the stream session.
type SessionState string

const (
	SessionConnecting   SessionState = "connecting"
	SessionConnected    SessionState = "connected"
	SessionDisconnected SessionState = "disconnected"
	SessionClosed       SessionState = "closed"
)

// MSessionStatus is a session-level event surfaced to the lifecycle controller.
type MSessionStatus struct {
	State   SessionState `json:"state"`
	Err     error        `json:"-"`
	Error   string       `json:"error,omitempty"`
	Attempt int          `json:"attempt"`
}

// MSubscriberStats holds stream diagnostic counters.
type MSubscriberStats struct {
	Received     int64 `json:"received"`
	Forwarded    int64 `json:"forwarded"`
	Ignored      int64 `json:"ignored"`
	DecodeErrors int64 `json:"decode_errors"`
}
