package budget

import "sync"

// KV is the persisted counter shared by every tab on a device. Exactly one
// value is authoritative per session-day key; older keys are garbage.
type KV interface {
	// Load returns the stored seconds for key; ok is false when no value
	// exists yet.
	Load(key string) (seconds int, ok bool, err error)
	Store(key string, seconds int) error
}

// Notifier is an optional KV capability: broadcast of external writes so a
// sibling clock can observe changes without waiting for its next resume.
// Implementations without it are fine; clocks always reconcile on resume.
type Notifier interface {
	Watch(fn func(key string, seconds int)) (cancel func())
}

// MemoryKV is an in-memory KV with change broadcast. It backs tests and
// doubles as a stand-in for the shared device storage when several clocks
// ("tabs") run in one process.
type MemoryKV struct {
	mu       sync.Mutex
	values   map[string]int
	watchers map[int]func(key string, seconds int)
	nextID   int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values:   make(map[string]int),
		watchers: make(map[int]func(string, int)),
	}
}

func (m *MemoryKV) Load(key string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Store(key string, seconds int) error {
	m.mu.Lock()
	m.values[key] = seconds
	watchers := make([]func(string, int), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(key, seconds)
	}
	return nil
}

func (m *MemoryKV) Watch(fn func(key string, seconds int)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// Keys returns the stored keys, for cleanup assertions in tests.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}
