package store

import (
	"sort"
	"sync"
	"time"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

type taskEntry struct {
	task protocol.Task
	ts   time.Time
}

// Tasks caches the kanban board keyed by project.
type Tasks struct {
	mu        sync.RWMutex
	byProject map[string]map[string]taskEntry // project id → task id → entry
}

// NewTasks creates an empty task cache.
func NewTasks() *Tasks {
	return &Tasks{byProject: make(map[string]map[string]taskEntry)}
}

// Apply is the dispatcher handler for task events.
func (s *Tasks) Apply(ev protocol.Event) {
	task, ok := ev.Payload.(*protocol.Task)
	if !ok {
		return
	}
	if ev.Kind != protocol.KindTaskNew && ev.Kind != protocol.KindTaskUpdate {
		return
	}

	projectID := task.ProjectID
	if projectID == "" {
		projectID = ev.ProjectID
	}
	s.put(projectID, *task, recordTime(ev.Timestamp, task.UpdatedAt))
}

func (s *Tasks) put(projectID string, task protocol.Task, ts time.Time) {
	if projectID == "" || task.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.byProject[projectID]
	if proj == nil {
		proj = make(map[string]taskEntry)
		s.byProject[projectID] = proj
	}

	if existing, ok := proj[task.ID]; ok && !ts.After(existing.ts) {
		return
	}
	task.ProjectID = projectID
	proj[task.ID] = taskEntry{task: task, ts: ts}
}

// Merge folds a REST snapshot of a project's board into the cache.
func (s *Tasks) Merge(projectID string, tasks []protocol.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj := s.byProject[projectID]
	if proj == nil {
		proj = make(map[string]taskEntry)
		s.byProject[projectID] = proj
	}

	for _, task := range tasks {
		if task.ID == "" {
			continue
		}
		ts := recordTime(time.Time{}, task.UpdatedAt)
		if existing, ok := proj[task.ID]; ok && !ts.After(existing.ts) {
			continue
		}
		task.ProjectID = projectID
		proj[task.ID] = taskEntry{task: task, ts: ts}
	}
}

// Project returns the project's tasks ordered by status, then title.
func (s *Tasks) Project(projectID string) []protocol.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proj := s.byProject[projectID]
	tasks := make([]protocol.Task, 0, len(proj))
	for _, e := range proj {
		tasks = append(tasks, e.task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return tasks[i].Status < tasks[j].Status
		}
		if tasks[i].Title != tasks[j].Title {
			return tasks[i].Title < tasks[j].Title
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// ByStatus groups a project's tasks into board columns.
func (s *Tasks) ByStatus(projectID string) map[string][]protocol.Task {
	cols := make(map[string][]protocol.Task)
	for _, t := range s.Project(projectID) {
		cols[t.Status] = append(cols[t.Status], t)
	}
	return cols
}
