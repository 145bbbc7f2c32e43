package shade

import (
	"context"
	"sync"
)

// responseWaiter hands the latest notification to the single dispatch cycle
// waiting for it. Only one command is ever in flight per shade, so one slot
// is enough: a new notification overwrites whatever was there.
type responseWaiter struct {
	mu     sync.Mutex
	data   []byte
	signal chan struct{}
}

func newResponseWaiter() *responseWaiter {
	return &responseWaiter{signal: make(chan struct{}, 1)}
}

// Put stores data and wakes the waiter, if any
func (w *responseWaiter) Put(data []byte) {
	w.mu.Lock()
	w.data = data
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Clear drops any stored response and pending signal
func (w *responseWaiter) Clear() {
	w.mu.Lock()
	w.data = nil
	w.mu.Unlock()

	select {
	case <-w.signal:
	default:
	}
}

// Wait blocks until a response arrives or ctx ends, then consumes it
func (w *responseWaiter) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-w.signal:
		w.mu.Lock()
		data := w.data
		w.data = nil
		w.mu.Unlock()
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
