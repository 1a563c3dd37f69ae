// Package stream provides replay-last broadcasters for preference and inbox
// updates.
package stream

import "sync"

const defaultBuffer = 16

// Broadcaster fans values out to subscribers in publish order. A new
// subscriber first receives the last published value. A subscriber that
// falls behind loses its oldest pending values, never the newest one.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	nextID  int
	last    T
	hasLast bool
	closed  bool
	buffer  int
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return NewBufferedBroadcaster[T](defaultBuffer)
}

func NewBufferedBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Publish records v as the latest value and offers it to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = v
	b.hasLast = true
	for _, ch := range b.subs {
		offer(ch, v)
	}
}

// offer never blocks: on a full buffer the oldest pending value goes.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a channel of values and a cancel func. Cancel is
// idempotent and closes the channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.hasLast {
		ch <- b.last
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Last returns the most recent value, if any.
func (b *Broadcaster[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Subscribers reports the live subscriber count.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Hub keeps one broadcaster per key, created on first use.
type Hub[K comparable, T any] struct {
	mu    sync.Mutex
	items map[K]*Broadcaster[T]
}

func NewHub[K comparable, T any]() *Hub[K, T] {
	return &Hub[K, T]{items: make(map[K]*Broadcaster[T])}
}

func (h *Hub[K, T]) For(key K) *Broadcaster[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.items[key]
	if !ok {
		b = NewBroadcaster[T]()
		h.items[key] = b
	}
	return b
}

// Publish is shorthand for For(key).Publish(v).
func (h *Hub[K, T]) Publish(key K, v T) {
	h.For(key).Publish(v)
}

// Close closes every broadcaster in the hub.
func (h *Hub[K, T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, b := range h.items {
		b.Close()
		delete(h.items, k)
	}
}
