package orchestrator

import (
	"context"
	"sync"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// chatQueue enforces §5's per-chat serialization guarantee: at most one
// submitTurn/swipe may be in flight for a given chatId. The teacher's own
// aiqueue package models per-room steer/debounce/cap policy around a single
// in-flight agent turn; this core needs none of that policy surface, only
// the same "only one turn in flight" guarantee, so it is reduced to a
// lock-per-chat-id map.
type chatQueue struct {
	mu    sync.Mutex
	locks map[chatid.ID]*sync.Mutex
}

func newChatQueue() *chatQueue {
	return &chatQueue{locks: make(map[chatid.ID]*sync.Mutex)}
}

func (q *chatQueue) lockFor(chatID chatid.ID) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		q.locks[chatID] = l
	}
	return l
}

// Acquire blocks until chatID's lock is free or ctx is canceled, following
// §5's default "blocking" policy for a second in-flight call. It returns a
// release function the caller must defer, and false if ctx was canceled
// before the lock was acquired.
func (q *chatQueue) Acquire(ctx context.Context, chatID chatid.ID) (release func(), ok bool) {
	l := q.lockFor(chatID)
	done := make(chan struct{})
	go func() {
		l.Lock()
		close(done)
	}()
	select {
	case <-done:
		return l.Unlock, true
	case <-ctx.Done():
		go func() { <-done; l.Unlock() }()
		return func() {}, false
	}
}
