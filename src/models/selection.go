package models

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Interval
// -----------------------------------------------------------------------------

// Interval is the candle bucket width of a selection.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
)

// SupportedIntervals lists intervals in display order.
var SupportedIntervals = []Interval{Interval5m, Interval15m}

// ParseInterval normalizes and validates an interval string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case Interval5m:
		return Interval5m, nil
	case Interval15m:
		return Interval15m, nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Seconds returns the bucket width in seconds, 0 for unknown intervals.
func (i Interval) Seconds() int64 {
	switch i {
	case Interval5m:
		return 5 * 60
	case Interval15m:
		return 15 * 60
	}
	return 0
}

// Align floors ts to the bucket boundary.
func (i Interval) Align(ts int64) int64 {
	w := i.Seconds()
	if w == 0 {
		return ts
	}
	return ts - ((ts%w)+w)%w
}

func (i Interval) String() string {
	return string(i)
}

// -----------------------------------------------------------------------------
// Selection
// -----------------------------------------------------------------------------

// MSelection identifies what is being displayed. Compared by value.
type MSelection struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
}

// NewSelection builds a validated selection, upper-casing the symbol.
func NewSelection(symbol, interval string) (MSelection, error) {
	iv, err := ParseInterval(interval)
	if err != nil {
		return MSelection{}, err
	}
	sel := MSelection{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Interval: iv}
	if err := sel.Validate(); err != nil {
		return MSelection{}, err
	}
	return sel, nil
}

// Validate rejects an empty symbol or unknown interval.
func (s MSelection) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("selection symbol cannot be empty")
	}
	if s.Interval.Seconds() == 0 {
		return fmt.Errorf("unsupported interval %q", s.Interval)
	}
	return nil
}

// IsZero reports whether the selection is unset.
func (s MSelection) IsZero() bool {
	return s == MSelection{}
}

// Matches compares symbol and interval case-insensitively.
func (s MSelection) Matches(symbol, interval string) bool {
	return strings.EqualFold(s.Symbol, symbol) && strings.EqualFold(string(s.Interval), interval)
}

func (s MSelection) String() string {
	return s.Symbol + "@" + string(s.Interval)
}
