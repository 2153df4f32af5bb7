package store

import (
	"sort"
	"sync"
	"time"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

type messageEntry struct {
	msg protocol.Message
	ts  time.Time
}

// Messages caches chat messages keyed by channel.
type Messages struct {
	mu        sync.RWMutex
	byChannel map[string]map[string]messageEntry // channel id → message id → entry
}

// NewMessages creates an empty message cache.
func NewMessages() *Messages {
	return &Messages{byChannel: make(map[string]map[string]messageEntry)}
}

// Apply is the dispatcher handler for message events.
func (s *Messages) Apply(ev protocol.Event) {
	msg, ok := ev.Payload.(*protocol.Message)
	if !ok {
		return
	}

	switch ev.Kind {
	case protocol.KindMessageNew:
		s.put(*msg, recordTime(ev.Timestamp, msg.UpdatedAt, msg.CreatedAt), false)
	case protocol.KindMessageUpdate:
		s.put(*msg, recordTime(ev.Timestamp, msg.UpdatedAt, msg.CreatedAt), true)
	}
}

// put inserts or updates one message. A message:new for an id already
// present is a no-op; an update only wins when its timestamp is newer.
func (s *Messages) put(msg protocol.Message, ts time.Time, update bool) {
	if msg.ID == "" || msg.ChannelID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.byChannel[msg.ChannelID]
	if ch == nil {
		ch = make(map[string]messageEntry)
		s.byChannel[msg.ChannelID] = ch
	}

	existing, present := ch[msg.ID]
	if present {
		if !update || !ts.After(existing.ts) {
			return
		}
	}
	ch[msg.ID] = messageEntry{msg: msg, ts: ts}
}

// Merge folds a REST snapshot of a channel into the cache. Records already
// present keep whichever side is newer by timestamp.
func (s *Messages) Merge(channelID string, msgs []protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.byChannel[channelID]
	if ch == nil {
		ch = make(map[string]messageEntry)
		s.byChannel[channelID] = ch
	}

	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		ts := recordTime(time.Time{}, msg.UpdatedAt, msg.CreatedAt)
		if existing, ok := ch[msg.ID]; ok && !ts.After(existing.ts) {
			continue
		}
		msg.ChannelID = channelID
		ch[msg.ID] = messageEntry{msg: msg, ts: ts}
	}
}

// Channel returns the channel's messages ordered by creation time.
func (s *Messages) Channel(channelID string) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch := s.byChannel[channelID]
	msgs := make([]protocol.Message, 0, len(ch))
	for _, e := range ch {
		msgs = append(msgs, e.msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}
