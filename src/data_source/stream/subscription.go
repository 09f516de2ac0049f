package stream

import (
	"chart-observer/src/models"
)

// Subscription binds one selection to a handler on a Subscriber.
// It stops forwarding as soon as it is unsubscribed or replaced by another SetFilter.
type Subscription struct {
	owner     *Subscriber
	selection models.MSelection
	handler   func(models.MKlineEvent)
}

// -----------------------------------------------------------------------------

func (s *Subscription) Selection() models.MSelection {
	return s.selection
}

// -----------------------------------------------------------------------------

// Active reports whether this subscription is the subscriber's current filter.
func (s *Subscription) Active() bool {
	return s.owner.filter.Load() == s
}

// -----------------------------------------------------------------------------

// Unsubscribe clears the filter if it is still this subscription. Idempotent.
func (s *Subscription) Unsubscribe() {
	if s.owner.filter.CompareAndSwap(s, nil) {
		s.owner.Logger.Debug("Unsubscribed from %s", s.selection)
	}
}
