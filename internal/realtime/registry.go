package realtime

import (
	"sort"
	"sync"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Topic is a logical scope of interest the hub partitions events by.
type Topic struct {
	Type protocol.TopicType
	ID   string
}

// registry tracks which topics the client is interested in. Interests are
// reference-counted: many views can subscribe to the same topic and share
// one hub-side subscription. The full set is replayed after every reconnect.
type registry struct {
	// send transmits a control frame when a connection is live; it is a
	// no-op while disconnected (the interest is replayed on connect).
	send func(protocol.Control)

	mu   sync.Mutex
	refs map[Topic]int
}

func newRegistry(send func(protocol.Control)) *registry {
	return &registry{
		send: send,
		refs: make(map[Topic]int),
	}
}

// subscribe records interest in t and returns a release function. The first
// reference sends a subscribe frame; the last release sends an unsubscribe
// frame. The release function is idempotent: calls after the first are
// no-ops, so a view that tears down twice cannot double-decrement.
func (r *registry) subscribe(t Topic) func() {
	r.mu.Lock()
	r.refs[t]++
	first := r.refs[t] == 1
	r.mu.Unlock()

	if first {
		r.send(protocol.Control{Action: t.Type.SubscribeAction(), ID: t.ID})
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(t) })
	}
}

func (r *registry) release(t Topic) {
	r.mu.Lock()
	n, ok := r.refs[t]
	if !ok {
		r.mu.Unlock()
		return
	}
	n--
	last := n == 0
	if last {
		delete(r.refs, t)
	} else {
		r.refs[t] = n
	}
	r.mu.Unlock()

	if last {
		r.send(protocol.Control{Action: t.Type.UnsubscribeAction(), ID: t.ID})
	}
}

// active returns a stable snapshot of all topics with at least one
// reference, used to replay subscriptions after a reconnect.
func (r *registry) active() []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]Topic, 0, len(r.refs))
	for t := range r.refs {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Type != topics[j].Type {
			return topics[i].Type < topics[j].Type
		}
		return topics[i].ID < topics[j].ID
	})
	return topics
}
