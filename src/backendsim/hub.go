package backendsim

import (
	"sync"
	"sync/atomic"
)

// streamHub fans encoded frames out to stream sessions.
type streamHub struct {
	mu   sync.RWMutex
	subs map[int64]chan []byte
	seq  atomic.Int64
}

func newStreamHub() *streamHub {
	return &streamHub{
		subs: make(map[int64]chan []byte),
	}
}

func (h *streamHub) Subscribe() (int64, chan []byte) {
	id := h.seq.Add(1)
	ch := make(chan []byte, 128)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *streamHub) Unsubscribe(id int64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *streamHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast drops sessions whose buffer is full.
func (h *streamHub) Broadcast(frame []byte) []int64 {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- frame:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range lagging {
		h.Unsubscribe(id)
	}
	return lagging
}

// Send delivers a frame to one session without blocking.
func (h *streamHub) Send(id int64, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.subs[id]
	if !ok {
		return false
	}
	select {
	case ch <- frame:
		return true
	default:
		return false
	}
}
