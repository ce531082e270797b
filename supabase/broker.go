package supabase

import (
	"sync"

	"github.com/goliatone/go-storefront"
)

type subscription struct {
	id int
	fn storefront.SessionChangeFunc
}

// broker fans session change notifications out to subscribers in emission
// order. Callbacks run outside the lock on a snapshot of subscribers.
type broker struct {
	mu   sync.Mutex
	next int
	subs []subscription
}

func (b *broker) subscribe(fn storefront.SessionChangeFunc) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *broker) emit(event storefront.SessionEvent, session *storefront.Session) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.fn(event, session)
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
