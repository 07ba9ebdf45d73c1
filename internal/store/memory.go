package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shiptrace/internal/models"
)

// MemoryStore keeps shipments in a map. Used by tests and when no database
// is configured.
type MemoryStore struct {
	shipments map[uint]models.Shipment
	nextID    uint
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[uint]models.Shipment),
		nextID:    1,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, sh *models.Shipment) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shipments {
		if existing.TrackingID == sh.TrackingID {
			return ErrDuplicateTrackingID
		}
	}
	sh.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	if sh.UpdatedAt.IsZero() {
		sh.UpdatedAt = now
	}
	s.shipments[sh.ID] = sh.Clone()
	return nil
}

// find must be called with the lock held.
func (s *MemoryStore) find(l Lookup) (models.Shipment, bool) {
	if l.Ref == "" {
		return models.Shipment{}, false
	}
	for _, sh := range s.shipments {
		if sh.TrackingID == l.Ref {
			return sh, true
		}
	}
	if id, ok := l.id(); ok {
		if sh, ok := s.shipments[id]; ok {
			return sh, true
		}
	}
	if l.CaseInsensitive {
		var (
			match models.Shipment
			found bool
		)
		for _, sh := range s.shipments {
			if strings.EqualFold(sh.TrackingID, l.Ref) && (!found || sh.ID < match.ID) {
				match, found = sh, true
			}
		}
		return match, found
	}
	return models.Shipment{}, false
}

func (s *MemoryStore) FindOne(ctx context.Context, l Lookup) (models.Shipment, error) {
	select {
	case <-ctx.Done():
		return models.Shipment{}, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.find(l)
	if !ok {
		return models.Shipment{}, ErrNotFound
	}
	return sh.Clone(), nil
}

func (s *MemoryStore) FindOneAndUpdate(ctx context.Context, l Lookup, fn UpdateFunc) (models.Shipment, error) {
	select {
	case <-ctx.Done():
		return models.Shipment{}, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.find(l)
	if !ok {
		return models.Shipment{}, ErrNotFound
	}
	next := sh.Clone()
	if err := fn(&next); err != nil {
		return sh.Clone(), err
	}
	// identity and creation time are not writable
	next.ID, next.CreatedAt = sh.ID, sh.CreatedAt
	if next.TrackingID != sh.TrackingID {
		for id, other := range s.shipments {
			if id != sh.ID && other.TrackingID == next.TrackingID {
				return sh.Clone(), ErrDuplicateTrackingID
			}
		}
	}
	s.shipments[sh.ID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) FindOneAndDelete(ctx context.Context, l Lookup) (models.Shipment, error) {
	select {
	case <-ctx.Done():
		return models.Shipment{}, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.find(l)
	if !ok {
		return models.Shipment{}, ErrNotFound
	}
	delete(s.shipments, sh.ID)
	return sh, nil
}

// List returns one page sorted by creation time, newest first.
func (s *MemoryStore) List(ctx context.Context, page, limit int) ([]models.Shipment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		all = append(all, sh)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	start := offset(page, limit)
	if start >= len(all) {
		return []models.Shipment{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]models.Shipment, 0, end-start)
	for _, sh := range all[start:end] {
		out = append(out, sh.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.shipments)), nil
}
