package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ JobStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory JobStore for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	statuses    map[string]JobStatus
}

// NewMemory creates an empty in-memory job store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*Connection),
		statuses:    make(map[string]JobStatus),
	}
}

// PutConnection seeds a connection. Test helper.
func (s *MemoryStore) PutConnection(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.connections[c.ID] = &clone
}

// JobStatusOf returns the last recorded status for a job. Test helper.
func (s *MemoryStore) JobStatusOf(jobID string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[jobID]
	return st, ok
}

func (s *MemoryStore) GetConnection(_ context.Context, connectionID string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) MarkConnectionDeleted(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	c.Deleted = true
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetJobStatus(_ context.Context, jobID string, status JobStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[jobID] = status
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() {}
