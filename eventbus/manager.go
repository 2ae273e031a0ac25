package eventbus

import "sync"

// Manager owns the Bus of every task currently executing in this process.
type Manager struct {
	mu    sync.Mutex
	buses map[string]*Bus
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{buses: make(map[string]*Bus)}
}

// CreateOrGet returns the bus for taskID, creating it on first use.
func (m *Manager) CreateOrGet(taskID string) *Bus {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buses[taskID]
	if !ok {
		b = New()
		m.buses[taskID] = b
	}
	return b
}

// Get returns the bus for taskID if one exists.
func (m *Manager) Get(taskID string) (*Bus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buses[taskID]
	return b, ok
}

// Cleanup forgets the bus for taskID and drops all of its listeners.
func (m *Manager) Cleanup(taskID string) {
	m.mu.Lock()
	b, ok := m.buses[taskID]
	delete(m.buses, taskID)
	m.mu.Unlock()

	if ok {
		b.RemoveAllListeners()
	}
}
