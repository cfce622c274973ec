package service

import (
	"sync"

	"neasmart2mqtt/internal/core/domain"
)

// SnapshotStore holds the latest Installation snapshot per installation ID.
// Snapshots are immutable: the poller swaps whole values in (single
// writer), readers always see a consistent installation, never a partially
// updated one.
type SnapshotStore struct {
	mu       sync.RWMutex
	installs map[string]*domain.Installation
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		installs: map[string]*domain.Installation{},
	}
}

func (s *SnapshotStore) Put(inst *domain.Installation) {
	if inst == nil {
		return
	}
	s.mu.Lock()
	s.installs[inst.ID] = inst
	s.mu.Unlock()
}

func (s *SnapshotStore) Get(installationID string) *domain.Installation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installs[installationID]
}

// Zone resolves a zone by installation + database ID.
func (s *SnapshotStore) Zone(installationID, zoneID string) *domain.Zone {
	return s.Get(installationID).Zone(zoneID)
}

// FindZone looks a zone up by database ID across all installations.
func (s *SnapshotStore) FindZone(zoneID string) (*domain.Installation, *domain.Zone) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range s.installs {
		if zone := inst.Zone(zoneID); zone != nil {
			return inst, zone
		}
	}
	return nil, nil
}
