package series

import "chart-observer/src/models"

// View is a read-only window onto a store's series.
type View struct {
	candles []models.MCandle
}

// Len returns the number of candles.
func (v View) Len() int {
	return len(v.candles)
}

// At returns the i-th candle in ascending order.
func (v View) At(i int) models.MCandle {
	return v.candles[i]
}

// Last returns the most recent candle.
func (v View) Last() (models.MCandle, bool) {
	if len(v.candles) == 0 {
		return models.MCandle{}, false
	}
	return v.candles[len(v.candles)-1], true
}

// Candles copies the series out for consumers that outlive the view.
func (v View) Candles() []models.MCandle {
	out := make([]models.MCandle, len(v.candles))
	copy(out, v.candles)
	return out
}
