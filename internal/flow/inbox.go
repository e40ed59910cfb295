package flow

import (
	"context"
	"sync"
)

// inbox is the FIFO queue in front of a flow. It is unbounded unless a
// limit is set, in which case senders block until there is room.
// Messages are never dropped.
type inbox struct {
	mu     sync.Mutex
	items  []Request
	notify chan struct{}
	slots  chan struct{} // nil when unbounded
}

func newInbox(limit int) *inbox {
	q := &inbox{notify: make(chan struct{}, 1)}
	if limit > 0 {
		q.slots = make(chan struct{}, limit)
	}
	return q
}

func (q *inbox) push(ctx context.Context, req Request) error {
	if q.slots != nil {
		select {
		case q.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *inbox) pop() (Request, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	req := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.mu.Unlock()

	if q.slots != nil {
		<-q.slots
	}
	return req, true
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
