package editor

import (
	"context"
	"sync"

	"github.com/realaman90/koda-sub002/domain/events"
)

type subscriber struct {
	ch     chan events.Change
	closed bool
}

// feed fans change notifications out to subscribers without ever blocking
// the publisher. A subscriber that falls behind misses changes; it can
// always re-read the store.
type feed struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	buffer      int
	done        chan struct{}
	shutdown    bool
	onDrop      func()
}

func newFeed(buffer int, onDrop func()) *feed {
	if buffer < 1 {
		buffer = 1
	}
	return &feed{
		subscribers: make(map[*subscriber]struct{}),
		buffer:      buffer,
		done:        make(chan struct{}),
		onDrop:      onDrop,
	}
}

func (f *feed) subscribe(ctx context.Context) <-chan events.Change {
	sub := &subscriber{ch: make(chan events.Change, f.buffer)}

	f.mu.Lock()
	if f.shutdown {
		f.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			f.remove(sub)
		case <-f.done:
		}
	}()
	return sub.ch
}

func (f *feed) publish(changes ...events.Change) {
	if len(changes) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subscribers {
		for _, c := range changes {
			select {
			case sub.ch <- c:
			default:
				if f.onDrop != nil {
					f.onDrop()
				}
			}
		}
	}
}

func (f *feed) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subscribers[sub]; !ok {
		return
	}
	delete(f.subscribers, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shutdown {
		return
	}
	f.shutdown = true
	close(f.done)
	for sub := range f.subscribers {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	f.subscribers = nil
}
