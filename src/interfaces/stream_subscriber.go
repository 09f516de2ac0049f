package interfaces

import (
	"context"

	"chart-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISubscription is the cancellable binding returned by SetFilter.
// -----------------------------------------------------------------------------

type ISubscription interface {
	// Selection returns the filter this subscription forwards.
	Selection() models.MSelection

	// Active reports whether this subscription is still the current filter.
	Active() bool

	// Unsubscribe stops delivery. Idempotent.
	Unsubscribe()
}

// -----------------------------------------------------------------------------
// IStreamSubscriber owns the single long-lived stream session.
// -----------------------------------------------------------------------------

type IStreamSubscriber interface {

	// -----------------------------------------------------------------------------

	// Open dials the session. May be called again after the session is lost.
	// onStatus receives session-level events (connected / disconnected / closed).
	Open(ctx context.Context, onStatus func(models.MSessionStatus)) error

	// -----------------------------------------------------------------------------

	// SetFilter atomically replaces the forwarded selection.
	// The handler is called once per matching kline event until unsubscribed or replaced.
	SetFilter(selection models.MSelection, handler func(models.MKlineEvent)) ISubscription

	// -----------------------------------------------------------------------------

	// Close ends the session intentionally.
	Close() error
}
