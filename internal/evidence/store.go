package evidence

import (
	"sync"
	"time"

	"profiler-service/internal/models"
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Subject   string
	ScannedAt time.Time
	Items     []models.EvidenceItem
}

// Counts returns the number of items per kind.
func (s Snapshot) Counts() models.EvidenceCounts {
	return models.CountItems(s.Items)
}

// Store holds the evidence collected for one subject. Appends may come from
// any number of fetch workers at once.
type Store struct {
	mu        sync.RWMutex
	subject   string
	scannedAt time.Time
	items     []models.EvidenceItem
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an item in arrival order.
func (s *Store) Append(item models.EvidenceItem) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
}

// Begin names the subject and stamps the scan time. Collected items are kept.
func (s *Store) Begin(subject string, at time.Time) {
	s.mu.Lock()
	s.subject = subject
	s.scannedAt = at
	s.mu.Unlock()
}

// Replace substitutes the whole content, used when a saved record is loaded.
func (s *Store) Replace(subject string, items []models.EvidenceItem, scannedAt time.Time) {
	cp := make([]models.EvidenceItem, len(items))
	copy(cp, items)

	s.mu.Lock()
	s.subject = subject
	s.scannedAt = scannedAt
	s.items = cp
	s.mu.Unlock()
}

// Snapshot returns a copy that later appends do not affect.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.EvidenceItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Subject:   s.subject,
		ScannedAt: s.scannedAt,
		Items:     items,
	}
}

// Subject returns the current subject name.
func (s *Store) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// Counts returns item counts by kind.
func (s *Store) Counts() models.EvidenceCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CountItems(s.items)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
