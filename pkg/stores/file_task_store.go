package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
)

// FileTaskStore persists one Task per file at <dir>/<taskId>.json plus a
// sibling <dir>/<taskId>.push.json for its PushNotificationConfig, per
// §4.2. Writes are atomic (write-temp + rename) and serialized per taskId.
type FileTaskStore struct {
	dir    string
	locks  sync.Map // taskID -> *sync.Mutex
	indexL sync.Mutex
}

// NewFileTaskStore creates the backing directory if needed.
func NewFileTaskStore(dir string) (*FileTaskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ErrInternal.WithMessagef("failed to create task store directory: %v", err)
	}
	return &FileTaskStore{dir: dir}, nil
}

func (s *FileTaskStore) lockFor(taskID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(taskID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// safePath rejects taskIds that could escape the store directory.
func (s *FileTaskStore) safePath(taskID, suffix string) (string, error) {
	if taskID == "" || strings.ContainsAny(taskID, "/\\") || strings.Contains(taskID, "..") {
		return "", fmt.Errorf("invalid task id %q", taskID)
	}
	return filepath.Join(s.dir, taskID+suffix), nil
}

func writeAtomic(path string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *FileTaskStore) Load(taskID string) (*a2a.Task, bool) {
	path, err := s.safePath(taskID, ".json")
	if err != nil {
		return nil, false
	}

	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var task a2a.Task
	if err := json.NewDecoder(f).Decode(&task); err != nil {
		return nil, false
	}
	return &task, true
}

func (s *FileTaskStore) Save(task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	path, err := s.safePath(task.ID, ".json")
	if err != nil {
		return err
	}

	lock := s.lockFor(task.ID)
	lock.Lock()
	defer lock.Unlock()

	return writeAtomic(path, task)
}

func (s *FileTaskStore) SetPushNotification(taskID string, config a2a.PushNotificationConfig) bool {
	path, err := s.safePath(taskID, ".push.json")
	if err != nil {
		return false
	}

	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	return writeAtomic(path, config) == nil
}

func (s *FileTaskStore) GetPushNotification(taskID string) (a2a.PushNotificationConfig, bool) {
	path, err := s.safePath(taskID, ".push.json")
	if err != nil {
		return a2a.PushNotificationConfig{}, false
	}

	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return a2a.PushNotificationConfig{}, false
	}
	defer f.Close()

	var cfg a2a.PushNotificationConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return a2a.PushNotificationConfig{}, false
	}
	return cfg, true
}
