package session

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend. It doubles as the test backend: the Fail*
// fields inject faults into the next matching call.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailGet, FailSet and FailDelete are returned (once) by the next call of that kind.
	FailGet    error
	FailSet    error
	FailDelete error
	// PartialSet makes the next failing Set write its first entry before failing,
	// the way a non-transactional medium can die mid-write.
	PartialSet bool

	sets    int
	deletes int
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailGet; err != nil {
		m.FailGet = nil
		return nil, false, err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if err := m.FailSet; err != nil {
		m.FailSet = nil
		if m.PartialSet && len(entries) > 0 {
			m.PartialSet = false
			m.data[entries[0].Key] = append([]byte(nil), entries[0].Value...)
		}
		return err
	}
	for _, e := range entries {
		m.data[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if err := m.FailDelete; err != nil {
		m.FailDelete = nil
		return err
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Put writes a raw value, bypassing the Store. Tests use it to poison entries.
func (m *MemoryBackend) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Has reports whether key is present.
func (m *MemoryBackend) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Len returns the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Deletes returns how many Delete calls were made.
func (m *MemoryBackend) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// Sets returns how many Set calls were made.
func (m *MemoryBackend) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
