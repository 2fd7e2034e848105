// Package stores implements the Task Store (§4.2): load/save of a Task plus
// its per-task PushNotificationConfig, with writes to one taskId serialized
// per §5's per-Task serialization rule.
package stores

import (
	"sync"
	"time"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

// TaskStore is the contract the engine and dispatcher depend on. Reads may
// be concurrent; writes to the same taskId are serialized by the
// implementation.
type TaskStore interface {
	Load(taskID string) (task *a2a.Task, ok bool)
	Save(task *a2a.Task) error
	SetPushNotification(taskID string, config a2a.PushNotificationConfig) bool
	GetPushNotification(taskID string) (a2a.PushNotificationConfig, bool)
}

type entry struct {
	mu               sync.Mutex
	task             *a2a.Task
	pushNotification *a2a.PushNotificationConfig
	updatedAt        time.Time
}

// InMemoryTaskStore holds one entry per taskId, each independently locked so
// concurrent writes to different tasks never contend (§5).
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{entries: make(map[string]*entry)}
}

func (s *InMemoryTaskStore) entryFor(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	e = &entry{}
	s.entries[id] = e
	return e
}

// Load returns a snapshot of the task and its history. Reads are
// non-blocking: Load never waits on an in-flight Save for a different task,
// and only briefly locks the entry it reads.
func (s *InMemoryTaskStore) Load(taskID string) (*a2a.Task, bool) {
	s.mu.RLock()
	e, ok := s.entries[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task == nil {
		return nil, false
	}
	clone := *e.task
	clone.History = append([]a2a.Message(nil), e.task.History...)
	clone.Artifacts = append([]a2a.Artifact(nil), e.task.Artifacts...)
	return &clone, true
}

// Save atomically replaces the persisted task, serialized per taskId.
func (s *InMemoryTaskStore) Save(task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	e := s.entryFor(task.ID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task = task
	e.updatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryTaskStore) SetPushNotification(taskID string, config a2a.PushNotificationConfig) bool {
	e := s.entryFor(taskID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task == nil {
		return false
	}
	e.pushNotification = &config
	return true
}

func (s *InMemoryTaskStore) GetPushNotification(taskID string) (a2a.PushNotificationConfig, bool) {
	s.mu.RLock()
	e, ok := s.entries[taskID]
	s.mu.RUnlock()
	if !ok {
		return a2a.PushNotificationConfig{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pushNotification == nil {
		return a2a.PushNotificationConfig{}, false
	}
	return *e.pushNotification, true
}
