package client

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// dispatcher is the UI-affine execution context: a single goroutine that
// runs sink callbacks one at a time, in the order the server emitted the
// events they came from.
type dispatcher struct {
	mu     sync.Mutex
	ch     chan func()
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		ch:   make(chan func(), 256),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for fn := range d.ch {
		fn()
	}
}

// Do enqueues fn onto the serial context. Calls after Close are dropped,
// and so is fn when a stalled sink callback has let the queue fill: a
// blocking Do would hold the mutex and deadlock Close behind it.
func (d *dispatcher) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- fn:
	default:
		log.Warn().Msg("dispatch queue full, dropping event")
	}
}

// Close drains the queue and stops the goroutine.
func (d *dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done
}
