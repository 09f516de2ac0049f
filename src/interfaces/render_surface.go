package interfaces

import "chart-observer/src/models"

// -----------------------------------------------------------------------------
// IRenderSurface is the read-only consumer of the series.
// -----------------------------------------------------------------------------

type IRenderSurface interface {
	// SetData replaces the displayed series wholesale.
	SetData(selection models.MSelection, candles []models.MCandle, history bool)

	// Update appends or revises the last displayed candle.
	Update(candle models.MCandle)

	// SetStatus reflects session connectivity.
	SetStatus(status models.MSessionStatus)

	// Resize propagates a render surface size change.
	Resize(size models.MSurfaceSize)
}

// -----------------------------------------------------------------------------
// ICommandSink receives viewer commands (selection change, resize).
// -----------------------------------------------------------------------------

type ICommandSink interface {
	Select(selection models.MSelection) error
	Resize(size models.MSurfaceSize) error
}
