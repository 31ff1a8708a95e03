// internal/api/job/store.go
package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/cyclewatch/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Job is one asynchronous run tracked by the API.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    Status      `json:"status"`
	Result    any         `json:"result,omitempty"`
	Error     *core.Error `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed
}

// Store keeps recent jobs in memory. Jobs older than ttl are pruned and
// the oldest job is evicted once maxSize is reached.
type Store struct {
	jobs    map[string]*Job
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a new job store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a pending job and returns a copy of it.
func (s *Store) Create(jobType string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	now := s.now().UTC()
	j := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return *j
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return Job{}, core.Errorf(core.ErrNoData, "job %s not found", id)
	}
	return *j, nil
}

// Update modifies a job in place.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Errorf(core.ErrNoData, "job %s not found", id)
	}

	fn(j)
	j.UpdatedAt = s.now().UTC()
	return nil
}

// List returns live jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if s.expired(j) {
			continue
		}
		result = append(result, *j)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result
}

// Running reports whether any job of jobType has not finished.
func (s *Store) Running(jobType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.Type == jobType && !j.Done() && !s.expired(j) {
			return true
		}
	}
	return false
}

func (s *Store) expired(j *Job) bool {
	return s.ttl > 0 && j.Done() && s.now().Sub(j.UpdatedAt) > s.ttl
}

func (s *Store) pruneLocked() {
	kept := s.order[:0]
	for _, id := range s.order {
		if j := s.jobs[id]; j != nil && s.expired(j) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
