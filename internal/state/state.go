package state

import (
	"slices"
	"sync"
	"time"

	"github.com/fieldprobe/gaussd/internal/gauss"
)

// SnapshotStore remembers the last snapshot that made it to the broker, so
// the publisher can skip unchanged cycles and still heartbeat periodically.
type SnapshotStore interface {
	GetLast() (gauss.Snapshot, time.Time, bool)
	Update(snap gauss.Snapshot)
	HasChanged(snap gauss.Snapshot) bool
	Clear()
}

type snapshotStore struct {
	mu       sync.RWMutex
	last     gauss.Snapshot
	sentAt   time.Time
	hasValue bool
}

func NewSnapshotStore() SnapshotStore {
	return &snapshotStore{}
}

func (s *snapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = gauss.Snapshot{}
	s.sentAt = time.Time{}
	s.hasValue = false
}

func (s *snapshotStore) GetLast() (gauss.Snapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.sentAt, s.hasValue
}

func (s *snapshotStore) Update(snap gauss.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	s.sentAt = time.Now()
	s.hasValue = true
}

func (s *snapshotStore) HasChanged(snap gauss.Snapshot) bool {
	last, _, ok := s.GetLast()
	if !ok {
		return true
	}
	return !snapshotEqual(last, snap)
}

// snapshotEqual ignores the timestamp; everything else counts.
func snapshotEqual(a, b gauss.Snapshot) bool {
	return a.Name == b.Name &&
		a.Mx == b.Mx && a.My == b.My && a.Mz == b.Mz &&
		floatPtrEqual(a.M, b.M) &&
		boolPtrEqual(a.XEnable, b.XEnable) &&
		boolPtrEqual(a.YEnable, b.YEnable) &&
		boolPtrEqual(a.ZEnable, b.ZEnable) &&
		a.MeasRange == b.MeasRange &&
		a.Status == b.Status &&
		slices.Equal(a.Errors, b.Errors)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
