// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/storage"
)

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	profiles map[string]*models.VehicleProfile
	seq      int
	mu       sync.RWMutex

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockStorage creates an empty mock store
func NewMockStorage() *MockStorage {
	return &MockStorage{
		profiles: make(map[string]*models.VehicleProfile),
	}
}

func (m *MockStorage) Save(p models.VehicleProfile) (*models.VehicleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return nil, m.SaveErr
	}

	m.seq++
	p.ID = generateTestID(m.seq)
	// spaced a second apart so List order is stable
	p.SavedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	if p.TireCount == 0 {
		p.TireCount = p.AxleConfig.TotalTires()
	}
	m.profiles[p.ID] = &p
	out := p
	return &out, nil
}

func (m *MockStorage) Get(id string) (*models.VehicleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	out := *p
	return &out, nil
}

func (m *MockStorage) List(limit int) ([]*models.VehicleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*models.VehicleProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out := *p
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].SavedAt.After(list[j].SavedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.profiles, id)
	return nil
}

// Count returns the number of saved profiles
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

func generateTestID(seq int) string {
	return fmt.Sprintf("profile-%03d", seq)
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)
