package scheduler

import "github.com/hearthai/hearth/pkg/instance"

// Waiter is one caller queued for an instance of a specific model. Notify
// receives the instance it has been handed, once woken; callers set it
// before pushing.
type Waiter struct {
	ID          string
	Fingerprint string
	Notify      chan *instance.Instance

	// skipped records whether this waiter, while at the head of the
	// queue, has already been passed over once in favor of a
	// fingerprint-matching waiter further back. A waiter may not be
	// skipped twice consecutively.
	skipped bool
}

// WaiterQueue is a FIFO queue of waiters for one model, with the refinement
// that a released instance's fingerprint may let an out-of-order waiter
// jump ahead of the head, at most once consecutively per head waiter.
type WaiterQueue struct {
	items []*Waiter
}

// NewWaiterQueue constructs an empty queue.
func NewWaiterQueue() *WaiterQueue {
	return &WaiterQueue{}
}

// Push enqueues w at the back of the queue.
func (q *WaiterQueue) Push(w *Waiter) {
	q.items = append(q.items, w)
}

// Len reports how many waiters are queued.
func (q *WaiterQueue) Len() int {
	return len(q.items)
}

// Remove drops the waiter with the given id, if present, for cancellation
// (a waiting caller whose ctx was cancelled while queued).
func (q *WaiterQueue) Remove(id string) bool {
	for i, w := range q.items {
		if w.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Pop selects which waiter should receive a just-released instance with
// releasedFingerprint, removes it from the queue, and returns it. Returns
// nil if the queue is empty.
//
// The head waiter is served unless it was already skipped once (in which
// case it must be served now, consecutively-skipped being disallowed) and
// a later waiter's fingerprint matches releasedFingerprint, in which case
// that waiter jumps ahead and the head is marked skipped.
func (q *WaiterQueue) Pop(releasedFingerprint string) *Waiter {
	if len(q.items) == 0 {
		return nil
	}

	head := q.items[0]
	if head.skipped || releasedFingerprint == "" || head.Fingerprint == releasedFingerprint {
		q.items = q.items[1:]
		return head
	}

	for i := 1; i < len(q.items); i++ {
		if q.items[i].Fingerprint == releasedFingerprint {
			jumped := q.items[i]
			q.items = append(q.items[:i], q.items[i+1:]...)
			head.skipped = true
			return jumped
		}
	}

	q.items = q.items[1:]
	return head
}
