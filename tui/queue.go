package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// updateQueue hands listener callbacks to the bubbletea loop. push never
// blocks, so listeners may fire from inside Update.
type updateQueue struct {
	mu      sync.Mutex
	pending []interface{}
	signal  chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{signal: make(chan struct{}, 1)}
}

func (q *updateQueue) push(msg interface{}) {
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *updateQueue) drain() queuedMsgs {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := q.pending
	q.pending = nil
	return msgs
}

// wait creates a command that blocks until updates are queued and returns
// them as one batch
func (q *updateQueue) wait() tea.Cmd {
	return func() tea.Msg {
		<-q.signal
		return q.drain()
	}
}
