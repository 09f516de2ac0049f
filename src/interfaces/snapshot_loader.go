package interfaces

import (
	"context"

	"chart-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotLoader fetches one historical batch of candles for a selection.
// -----------------------------------------------------------------------------

type ISnapshotLoader interface {

	// -----------------------------------------------------------------------------

	// Load performs one request, without retry or cache. The result is ascending by time.
	// Failures are returned as *helpers.FetchError.
	Load(ctx context.Context, selection models.MSelection, limit int) ([]models.MCandle, error)
}
