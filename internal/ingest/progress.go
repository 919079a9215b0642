package ingest

import "sync"

// Update is a progress notification published to broadcaster subscribers.
type Update struct {
	RunID    string    `json:"runId"`
	FileName string    `json:"fileName"`
	Kind     EventKind `json:"kind"`
	Progress Progress  `json:"progress"`
}

// Broadcaster fans progress updates out to any number of subscribers.
//
// Publishing never blocks: a subscriber whose buffer is full misses that
// update. Progress is advisory and a slow UI must not stall ingestion.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan Update
	next      int
	last      Update
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[int]chan Update)}
}

// Subscribe returns a channel of updates and a function that unsubscribes
// and closes it. The most recent update, if any, is delivered first.
func (b *Broadcaster) Subscribe() (<-chan Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Update, 16)
	b.listeners[id] = ch

	if b.last.RunID != "" {
		ch <- b.last
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			close(ch)
		})
	}
}

// Publish sends u to every subscriber without blocking.
func (b *Broadcaster) Publish(u Update) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = u
	for _, ch := range b.listeners {
		select {
		case ch <- u:
		default:
			// Listener is slow, skip this update
		}
	}
}

// Last returns the most recent update.
func (b *Broadcaster) Last() Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
