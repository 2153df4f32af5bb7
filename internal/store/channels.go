package store

import (
	"sort"
	"sync"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Channels caches the chat channels of each project.
type Channels struct {
	mu        sync.RWMutex
	byProject map[string]map[string]protocol.Channel // project id → channel id → channel
}

// NewChannels creates an empty channel cache.
func NewChannels() *Channels {
	return &Channels{byProject: make(map[string]map[string]protocol.Channel)}
}

// Apply is the dispatcher handler for channel events.
func (s *Channels) Apply(ev protocol.Event) {
	ch, ok := ev.Payload.(*protocol.Channel)
	if !ok || ev.Kind != protocol.KindChannelNew {
		return
	}

	projectID := ch.ProjectID
	if projectID == "" {
		projectID = ev.ProjectID
	}
	s.put(projectID, *ch)
}

func (s *Channels) put(projectID string, ch protocol.Channel) {
	if projectID == "" || ch.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.byProject[projectID]
	if proj == nil {
		proj = make(map[string]protocol.Channel)
		s.byProject[projectID] = proj
	}
	ch.ProjectID = projectID
	proj[ch.ID] = ch
}

// Merge folds a REST snapshot of a project's channels into the cache.
func (s *Channels) Merge(projectID string, channels []protocol.Channel) {
	for _, ch := range channels {
		s.put(projectID, ch)
	}
}

// Project returns the project's channels ordered by name.
func (s *Channels) Project(projectID string) []protocol.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proj := s.byProject[projectID]
	channels := make([]protocol.Channel, 0, len(proj))
	for _, ch := range proj {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].Name != channels[j].Name {
			return channels[i].Name < channels[j].Name
		}
		return channels[i].ID < channels[j].ID
	})
	return channels
}
