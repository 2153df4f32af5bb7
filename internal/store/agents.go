package store

import (
	"sort"
	"sync"
	"time"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Agent is the cached view of one persona: its latest reported status plus
// the transient typing flag.
type Agent struct {
	ID        string
	ProjectID string
	Name      string
	Role      string
	Status    string
	Typing    bool
	UpdatedAt time.Time
}

// Agents caches persona status keyed by project.
type Agents struct {
	mu        sync.RWMutex
	byProject map[string]map[string]Agent // project id → agent id → agent
}

// NewAgents creates an empty agent cache.
func NewAgents() *Agents {
	return &Agents{byProject: make(map[string]map[string]Agent)}
}

// Apply is the dispatcher handler for agent events. Status transitions are
// last-write-wins by event timestamp; an older status event arriving late
// never overwrites a newer one.
func (s *Agents) Apply(ev protocol.Event) {
	switch p := ev.Payload.(type) {
	case *protocol.AgentStatus:
		if ev.Kind != protocol.KindAgentStatus {
			return
		}
		projectID := p.ProjectID
		if projectID == "" {
			projectID = ev.ProjectID
		}
		s.setStatus(projectID, *p, ev.Timestamp)

	case *protocol.AgentTyping:
		if ev.Kind != protocol.KindAgentTyping {
			return
		}
		s.setTyping(ev.ProjectID, p.AgentID, p.Typing)
	}
}

func (s *Agents) setStatus(projectID string, st protocol.AgentStatus, ts time.Time) {
	if projectID == "" || st.AgentID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.byProject[projectID]
	if proj == nil {
		proj = make(map[string]Agent)
		s.byProject[projectID] = proj
	}

	a, ok := proj[st.AgentID]
	if ok && ts.Before(a.UpdatedAt) {
		return
	}
	a.ID = st.AgentID
	a.ProjectID = projectID
	a.Status = st.Status
	a.UpdatedAt = ts
	if st.Name != "" {
		a.Name = st.Name
	}
	if st.Role != "" {
		a.Role = st.Role
	}
	proj[st.AgentID] = a
}

func (s *Agents) setTyping(projectID, agentID string, typing bool) {
	if agentID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Typing has no project hint of its own; look the agent up in every
	// project when the envelope did not carry one.
	for pid, proj := range s.byProject {
		if projectID != "" && pid != projectID {
			continue
		}
		if a, ok := proj[agentID]; ok {
			a.Typing = typing
			proj[agentID] = a
		}
	}
}

// Merge folds a REST snapshot of a project's roster into the cache, taken
// at asOf. Entries already updated by a newer event keep their state.
func (s *Agents) Merge(projectID string, roster []protocol.AgentStatus, asOf time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.byProject[projectID]
	if proj == nil {
		proj = make(map[string]Agent)
		s.byProject[projectID] = proj
	}

	for _, st := range roster {
		if st.AgentID == "" {
			continue
		}
		a, ok := proj[st.AgentID]
		if ok && asOf.Before(a.UpdatedAt) {
			continue
		}
		a.ID = st.AgentID
		a.ProjectID = projectID
		a.Status = st.Status
		a.UpdatedAt = asOf
		if st.Name != "" {
			a.Name = st.Name
		}
		if st.Role != "" {
			a.Role = st.Role
		}
		proj[st.AgentID] = a
	}
}

// Project returns the project's agents ordered by name, then id.
func (s *Agents) Project(projectID string) []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proj := s.byProject[projectID]
	agents := make([]Agent, 0, len(proj))
	for _, a := range proj {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Name != agents[j].Name {
			return agents[i].Name < agents[j].Name
		}
		return agents[i].ID < agents[j].ID
	})
	return agents
}
