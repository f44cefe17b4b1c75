package room

import (
	"context"
	"sync"

	"github.com/wfunc/picword/logger"
)

// Dispatcher delivers events to a slow notifier on its own goroutine.
// Notify only appends to an unbounded queue, so rooms can call it under
// their lock; the target sees events in the order Notify received them.
type Dispatcher struct {
	target Notifier

	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewDispatcher(target Notifier) *Dispatcher {
	d := &Dispatcher{
		target: target,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Notify(evt Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Log.Debugf("Dispatcher closed, dropping %s event for room %s", evt.Type, evt.RoomID)
		return
	}
	d.queue = append(d.queue, evt)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports events queued but not yet handed to the target.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, evt := range batch {
			d.deliver(evt)
		}
		if len(batch) == 0 {
			if closed {
				return
			}
			<-d.wake
		}
	}
}

func (d *Dispatcher) deliver(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("notifier panic on %s event for room %s: %v", evt.Type, evt.RoomID, r)
		}
	}()
	d.target.Notify(evt)
}

// Close stops accepting events and waits until the queued ones have been
// delivered or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
