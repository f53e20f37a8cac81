package queryprotocol

import (
	"sync"
)

// Topics used by the client's registries.
const (
	// TopicNotify is the generic notification topic; every notification is
	// delivered here before its per-event topic.
	TopicNotify = "notify"

	// topicAll is the connection registry's single topic.
	topicAll = "*"
)

// NotifyTopic returns the per-event topic for a notification name
// (e.g. "notify.cliententerview").
func NotifyTopic(event string) string {
	return TopicNotify + "." + event
}

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

// registry is a subscription table keyed by topic. Handlers are called in
// subscription order, without the registry lock held, so a handler may
// subscribe or unsubscribe.
type registry[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]handlerEntry[T]
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{handlers: make(map[string][]handlerEntry[T])}
}

// on registers fn under topic and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (r *registry[T]) on(topic string, fn func(T)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[topic] = append(r.handlers[topic], handlerEntry[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.off(topic, id) })
	}
}

func (r *registry[T]) off(topic string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.handlers[topic]
	for i, e := range entries {
		if e.id == id {
			// Copy so that snapshots taken by emit stay valid.
			next := make([]handlerEntry[T], 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			if len(next) == 0 {
				delete(r.handlers, topic)
			} else {
				r.handlers[topic] = next
			}
			return
		}
	}
}

// emit calls every handler of topic with v and reports whether there was
// at least one.
func (r *registry[T]) emit(topic string, v T) bool {
	r.mu.Lock()
	entries := r.handlers[topic]
	r.mu.Unlock()

	for _, e := range entries {
		e.fn(v)
	}
	return len(entries) > 0
}

// count returns the number of handlers registered under topic.
func (r *registry[T]) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[topic])
}
