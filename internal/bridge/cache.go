package bridge

import (
	"context"
	"sync"
	"time"
)

// Snapshot is an immutable record of the last message seen on a topic.
// A topic's cache entry is fully replaced on each receipt, never merged.
type Snapshot struct {
	Topic      string
	Payload    string
	QoS        byte
	Retained   bool
	ReceivedAt time.Time
}

// messageCache is a concurrency-safe last-value cache keyed by topic
// path. Writers wake waiters through a broadcast channel that is closed
// and replaced on every store, so WaitFor observes new entries without
// polling.
type messageCache struct {
	mu      sync.Mutex
	entries map[string]Snapshot
	notify  chan struct{}
}

func newMessageCache() *messageCache {
	return &messageCache{
		entries: make(map[string]Snapshot),
		notify:  make(chan struct{}),
	}
}

// Store replaces the entry for the snapshot's topic and wakes all waiters.
func (c *messageCache) Store(s Snapshot) {
	c.mu.Lock()
	c.entries[s.Topic] = s
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()
}

// Get returns the current snapshot for a topic, if any.
func (c *messageCache) Get(topic string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[topic]
	return s, ok
}

// Delete removes a single topic's entry.
func (c *messageCache) Delete(topic string) {
	c.mu.Lock()
	delete(c.entries, topic)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *messageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Snapshot)
	c.mu.Unlock()
}

// Len returns the number of cached topics.
func (c *messageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// All returns a copy of the cache contents.
func (c *messageCache) All() map[string]Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Snapshot, len(c.entries))
	for topic, s := range c.entries {
		out[topic] = s
	}
	return out
}

// WaitFor blocks until an entry for topic exists or the timeout elapses.
// Exceeding the deadline is not an error: it returns absent, and the
// caller reports "not found".
func (c *messageCache) WaitFor(ctx context.Context, topic string, timeout time.Duration) (Snapshot, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		if s, ok := c.entries[topic]; ok {
			c.mu.Unlock()
			return s, true
		}
		notify := c.notify
		c.mu.Unlock()

		select {
		case <-notify:
			// A write landed somewhere; re-check our topic.
		case <-deadline.C:
			return Snapshot{}, false
		case <-ctx.Done():
			return Snapshot{}, false
		}
	}
}
