package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    Interval
		wantErr bool
	}{
		{"5m", Interval5m, false},
		{" 15M ", Interval15m, false},
		{"1h", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterval_Align(t *testing.T) {
	assert.Equal(t, int64(300), Interval5m.Seconds())
	assert.Equal(t, int64(900), Interval15m.Seconds())

	assert.Equal(t, int64(1699999800), Interval5m.Align(1700000000))
	assert.Equal(t, int64(1699999200), Interval15m.Align(1700000000))
	assert.Equal(t, int64(600), Interval5m.Align(600))
	assert.Equal(t, int64(-300), Interval5m.Align(-1))
	assert.Equal(t, int64(7), Interval("1h").Align(7))
}

func TestNewSelection(t *testing.T) {
	sel, err := NewSelection(" btcusdt ", "5m")
	require.NoError(t, err)
	assert.Equal(t, MSelection{Symbol: "BTCUSDT", Interval: Interval5m}, sel)
	assert.Equal(t, "BTCUSDT@5m", sel.String())
	assert.False(t, sel.IsZero())

	_, err = NewSelection("", "5m")
	assert.Error(t, err)
	_, err = NewSelection("BTCUSDT", "4h")
	assert.Error(t, err)

	assert.True(t, MSelection{}.IsZero())
}

func TestSelection_Matches(t *testing.T) {
	sel := MSelection{Symbol: "BTCUSDT", Interval: Interval5m}

	assert.True(t, sel.Matches("btcusdt", "5m"))
	assert.True(t, sel.Matches("BTCUSDT", "5M"))
	assert.False(t, sel.Matches("ETHUSDT", "5m"))
	assert.False(t, sel.Matches("BTCUSDT", "15m"))
}

func TestKlineEvent_RoundTripToCandle(t *testing.T) {
	sel := MSelection{Symbol: "ETHUSDT", Interval: Interval15m}
	c := MCandle{Time: 900, Open: 1, High: 2, Low: 0.5, Close: 1.5}

	ev := NewKlineEvent(sel, c)
	assert.Equal(t, EventTypeKline, ev.Type)
	assert.True(t, sel.Matches(ev.Symbol, ev.Interval))
	assert.Equal(t, c, ev.Candle())
}

func TestMSeriesChange_Visible(t *testing.T) {
	assert.True(t, MSeriesChange{Kind: ChangeAppended}.Visible())
	assert.True(t, MSeriesChange{Kind: ChangeReplaced}.Visible())
	assert.False(t, MSeriesChange{Kind: ChangeDropped}.Visible())
	assert.Equal(t, "dropped", ChangeDropped.String())
}
