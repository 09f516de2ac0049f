package server

import (
	"time"

	"chart-observer/src/models"
)

// -----------------------------------------------------------------------------

func newFrame(frameType string) *models.MChartFrame {
	return &models.MChartFrame{Type: frameType, Timestamp: time.Now().Unix()}
}

// -----------------------------------------------------------------------------

func copyCandles(candles []models.MCandle) []models.MCandle {
	if candles == nil {
		return []models.MCandle{}
	}
	out := make([]models.MCandle, len(candles))
	copy(out, candles)
	return out
}

// -----------------------------------------------------------------------------

// mergeCandle mirrors the store's append-or-replace rule on the cached series.
func mergeCandle(candles []models.MCandle, c models.MCandle, maxCandles int) []models.MCandle {
	n := len(candles)
	switch {
	case n == 0 || c.Time > candles[n-1].Time:
		candles = append(candles, c)
	case c.Time == candles[n-1].Time:
		candles[n-1] = c
	default:
		return candles
	}

	if maxCandles > 0 && len(candles) > maxCandles {
		candles = candles[len(candles)-maxCandles:]
	}
	return candles
}
