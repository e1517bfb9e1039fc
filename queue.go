package twai

import (
	"sync"
	"time"
)

// msgQueue is a bounded FIFO of messages backed by a buffered channel.
type msgQueue struct {
	ch chan Message
}

func newMsgQueue(depth int) *msgQueue {
	if depth < 0 {
		depth = 0
	}
	return &msgQueue{ch: make(chan Message, depth)}
}

// push enqueues m without blocking and reports false when the queue is full.
func (q *msgQueue) push(m Message) bool {
	select {
	case q.ch <- m:
		return true
	default:
		return false
	}
}

// pop waits up to timeout for a message.
func (q *msgQueue) pop(timeout time.Duration) (Message, error) {
	select {
	case m := <-q.ch:
		return m, nil
	default:
	}
	if timeout <= 0 {
		return Message{}, ErrTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-q.ch:
		return m, nil
	case <-timer.C:
		return Message{}, ErrTimeout
	}
}

func (q *msgQueue) len() int { return len(q.ch) }

func (q *msgQueue) clear() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// alertLatch accumulates raised alerts until they are read.
type alertLatch struct {
	mu      sync.Mutex
	enabled Alert
	pending Alert
	notify  chan struct{}
}

func newAlertLatch(enabled Alert) *alertLatch {
	return &alertLatch{enabled: enabled, notify: make(chan struct{}, 1)}
}

func (l *alertLatch) setEnabled(a Alert) {
	l.mu.Lock()
	l.enabled = a
	l.pending &= a
	l.mu.Unlock()
}

// raise latches the enabled subset of a.
func (l *alertLatch) raise(a Alert) {
	l.mu.Lock()
	a &= l.enabled
	l.pending |= a
	l.mu.Unlock()
	if a == 0 {
		return
	}
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *alertLatch) take() Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.pending
	l.pending = 0
	return a
}

// read returns and clears the latched alerts, waiting up to timeout for
// one to be raised.
func (l *alertLatch) read(timeout time.Duration) (Alert, error) {
	if a := l.take(); a != 0 {
		return a, nil
	}
	if timeout <= 0 {
		return 0, ErrTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-l.notify:
			if a := l.take(); a != 0 {
				return a, nil
			}
		case <-timer.C:
			return 0, ErrTimeout
		}
	}
}
