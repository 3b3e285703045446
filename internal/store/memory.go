package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// MemoryStore keeps sessions and jobs in process memory. It is used by the
// CLI and by tests; entries never expire.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	jobs     map[string]*model.Job
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		jobs:     make(map[string]*model.Job),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, state model.PipelineState) (*Session, error) {
	now := m.now()
	sess := &Session{
		ID:        uuid.New().String(),
		State:     state.Clone(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	return copySession(sess), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return copySession(sess), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	next, err := fn(sess.State.Clone())
	if err != nil {
		return nil, err
	}

	updated := &Session{
		ID:        sess.ID,
		State:     next.Clone(),
		Version:   sess.Version + 1,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: m.now(),
	}
	m.sessions[id] = updated
	return copySession(updated), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveJob(_ context.Context, job *model.Job) error {
	cp := *job
	m.mu.Lock()
	m.jobs[job.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) UpdateJob(_ context.Context, id string, fn func(*model.Job)) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	cp := *job
	fn(&cp)
	m.jobs[id] = &cp
	out := cp
	return &out, nil
}

func copySession(s *Session) *Session {
	cp := *s
	cp.State = s.State.Clone()
	return &cp
}
