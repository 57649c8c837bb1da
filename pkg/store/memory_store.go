package store

import (
	"sync"

	"beyondcare/pkg/domain"
)

// MemoryStore keeps records in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	reports     map[string]domain.Report
	reportOrder []string // insertion order, oldest first
	history     map[string][]domain.HistoryEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		reports: make(map[string]domain.Report),
		history: make(map[string][]domain.HistoryEntry),
	}
}

// SaveUser registers a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveReport stores a report record and tracks insertion order.
func (m *MemoryStore) SaveReport(r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reports[r.ID]; !exists {
		m.reportOrder = append(m.reportOrder, r.ID)
	}
	m.reports[r.ID] = r
	return nil
}

// ListReportsByOwner returns the owner's reports, newest first.
func (m *MemoryStore) ListReportsByOwner(ownerID string) ([]domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Report, 0, len(m.reportOrder))
	for i := len(m.reportOrder) - 1; i >= 0; i-- {
		if r, ok := m.reports[m.reportOrder[i]]; ok && r.OwnerID == ownerID {
			res = append(res, r)
		}
	}
	return res, nil
}

// GetReportByOwner retrieves a report scoped to its owner.
func (m *MemoryStore) GetReportByOwner(id, ownerID string) (domain.Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok || r.OwnerID != ownerID {
		return domain.Report{}, false, nil
	}
	return r, true, nil
}

// DeleteReport removes a report record.
func (m *MemoryStore) DeleteReport(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	filtered := m.reportOrder[:0]
	for _, item := range m.reportOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.reportOrder = filtered
	return nil
}

// AppendHistory records one answered interaction.
func (m *MemoryStore) AppendHistory(h domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[h.OwnerID] = append(m.history[h.OwnerID], h)
	return nil
}

// ListHistoryByOwner returns the owner's latest entries, newest first.
func (m *MemoryStore) ListHistoryByOwner(ownerID string, limit int) ([]domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[ownerID]
	res := make([]domain.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		res = append(res, entries[i])
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	return res, nil
}
