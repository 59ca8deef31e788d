package store

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnavailable is returned by a MemoryKV put into failing mode.
var ErrUnavailable = errors.New("storage unavailable")

// MemoryKV is a process-local key/value store. It backs tests and the
// degraded mode used when the database cannot be opened.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string]string
	failed bool
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// SetFailing makes every subsequent call return ErrUnavailable.
func (m *MemoryKV) SetFailing(failing bool) {
	m.mu.Lock()
	m.failed = failing
	m.mu.Unlock()
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failed {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed {
		return ErrUnavailable
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed {
		return ErrUnavailable
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failed {
		return nil, ErrUnavailable
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
