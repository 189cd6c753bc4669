package worker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harshul/vidnote/internal/api"
)

// Store keeps download tasks in memory for the life of the worker.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*api.Task
	order []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*api.Task)}
}

// Create registers a queued task for url.
func (s *Store) Create(url string) api.Task {
	now := time.Now()
	task := &api.Task{
		TaskID:    uuid.NewString(),
		URL:       url,
		Status:    api.TaskQueued,
		Progress:  api.Progress{Status: api.TaskQueued},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = task
	s.order = append(s.order, task.TaskID)
	return *task
}

// Get returns a copy of the task.
func (s *Store) Get(id string) (api.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return api.Task{}, false
	}
	return *task, true
}

// List returns copies of all tasks in creation order.
func (s *Store) List() []api.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// Update mutates the task under the store lock. Finished tasks are frozen.
func (s *Store) Update(id string, fn func(*api.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status.IsFinished() {
		return false
	}
	fn(task)
	task.Progress.Status = task.Status
	task.UpdatedAt = time.Now()
	return true
}
