package link

import "sync"

// queue is the ordered event channel between producers (the reader
// goroutine and callers of Send) and the single consumer.  push never
// blocks, so a producer holding the controller lock cannot be stalled
// by a slow consumer; a pump goroutine moves events from the backlog to
// the unbuffered out channel in FIFO order.
type queue struct {
	mu      sync.Mutex
	backlog []Event
	closed  bool
	notify  chan struct{}

	out  chan Event
	done chan struct{}
}

func newQueue() *queue {
	q := &queue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

// push appends ev.  It reports false if the queue is already closed.
func (q *queue) push(ev Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()

	q.wake()
	return true
}

// close stops accepting events.  Events already queued are still
// delivered, after which out is closed.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// pending returns the number of events not yet handed to the consumer.
func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

func (q *queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pump() {
	defer close(q.done)
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.backlog) == 0 {
			closed := q.closed
			q.backlog = nil
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.notify
			continue
		}
		ev := q.backlog[0]
		q.backlog[0] = Event{}
		q.backlog = q.backlog[1:]
		q.mu.Unlock()

		q.out <- ev
	}
}
