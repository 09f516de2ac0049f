package interfaces

import "chart-observer/src/models"

// -----------------------------------------------------------------------------
// ISessionObserver is notified of stream session connectivity changes.
// -----------------------------------------------------------------------------

type ISessionObserver interface {
	SessionChanged(status models.MSessionStatus)
}
