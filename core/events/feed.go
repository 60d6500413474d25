package events

import "sync"

const defaultFeedBuffer = 64

// Feed is an Emitter that fans committed events out to subscribers. Slow
// subscribers drop events instead of blocking the emitter.
type Feed struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan Event
	dropped uint64
}

// NewFeed constructs an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function closes the
// channel and must be called once the subscriber is done.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	ch := make(chan Event, buffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Emit implements the Emitter interface.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
			f.dropped++
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (f *Feed) Dropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}
