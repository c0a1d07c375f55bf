// Package eventbus is an in-process publish/subscribe bus. Topics are dot separated and
// subscriptions may use "*" for any single segment, or be exactly "*" for every topic.
package eventbus

import (
	"strings"
	"sync"
	"time"

	"github.com/kmchat/kmchat/internal/common/uuid"
)

// Event is one published message.
type Event struct {
	Topic string
	Data  any
}

type subscriber struct {
	id      string
	pattern string
	ch      chan Event

	mu     sync.Mutex
	closed bool
}

// send delivers e, waiting up to timeout for buffer space. It reports whether e was
// delivered.
func (s *subscriber) send(e Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if timeout <= 0 {
		select {
		case s.ch <- e:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- e:
		return true
	case <-timer.C:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Bus routes events from publishers to matching subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe registers interest in pattern. The returned channel is closed by the
// unsubscribe function or by Shutdown; unsubscribe may be called more than once.
func (b *Bus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	sub := &subscriber{
		id:      uuid.New().String(),
		pattern: pattern,
		ch:      make(chan Event, bufferSize),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub.ch, func() {
		b.mu.Lock()
		delete(b.subs, sub.id)
		b.mu.Unlock()
		sub.close()
	}
}

// Publish delivers data on topic to every matching subscriber and returns how many
// received it. A subscriber whose buffer stays full for timeout misses the event.
func (b *Bus) Publish(topic string, data any, timeout time.Duration) int {
	e := Event{Topic: topic, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subs {
		if matchTopic(sub.pattern, topic) && sub.send(e, timeout) {
			delivered++
		}
	}
	return delivered
}

// CloseMatching closes every subscription whose pattern matches topic.
func (b *Bus) CloseMatching(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if matchTopic(sub.pattern, topic) {
			sub.close()
			delete(b.subs, id)
		}
	}
}

// Shutdown closes all subscriptions.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = make(map[string]*subscriber)
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}
