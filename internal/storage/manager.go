package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tpms-dashboard/backend/internal/models"
)

// ErrNotFound is returned for unknown profile IDs.
var ErrNotFound = errors.New("profile not found")

const profileExt = ".yaml"

// Store defines the interface for saved vehicle profiles.
type Store interface {
	Save(p models.VehicleProfile) (*models.VehicleProfile, error)
	Get(id string) (*models.VehicleProfile, error)
	List(limit int) ([]*models.VehicleProfile, error)
	Delete(id string) error
}

// ProfileStore implements Store with one YAML file per profile.
type ProfileStore struct {
	mu       sync.RWMutex
	dir      string
	profiles map[string]*models.VehicleProfile
	now      func() time.Time
}

// NewProfileStore opens dir, creating it if needed, and loads existing profiles.
func NewProfileStore(dir string) (*ProfileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}

	s := &ProfileStore{
		dir:      dir,
		profiles: make(map[string]*models.VehicleProfile),
		now:      time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ProfileStore) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading profile directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading profile %s: %w", e.Name(), err)
		}
		var p models.VehicleProfile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parsing profile %s: %w", e.Name(), err)
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(e.Name(), profileExt)
		}
		s.profiles[p.ID] = &p
	}
	return nil
}

func (s *ProfileStore) path(id string) string {
	return filepath.Join(s.dir, id+profileExt)
}

// Save assigns an ID and timestamp and writes the profile.
func (s *ProfileStore) Save(p models.VehicleProfile) (*models.VehicleProfile, error) {
	p.ID = uuid.New().String()
	p.SavedAt = s.now()
	p.AxleConfig = append(models.AxleConfig(nil), p.AxleConfig...)
	if p.TireCount == 0 {
		p.TireCount = p.AxleConfig.TotalTires()
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("%d tires", p.TireCount)
	}

	data, err := yaml.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	path := s.path(p.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = &p
	out := p
	return &out, nil
}

// Get retrieves a profile by ID.
func (s *ProfileStore) Get(id string) (*models.VehicleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *p
	return &out, nil
}

// List returns the most recent profiles. A non-positive limit returns all.
func (s *ProfileStore) List(limit int) ([]*models.VehicleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.VehicleProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
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

// Delete removes a profile and its file.
func (s *ProfileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting profile: %w", err)
	}
	delete(s.profiles, id)
	return nil
}
