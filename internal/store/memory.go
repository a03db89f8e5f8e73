package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/geoimport/internal/geocache"
)

// Memory is a Store held in process memory.
type Memory struct {
	mu      sync.RWMutex
	caches  map[string]geocache.Cache
	history []ImportRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{caches: make(map[string]geocache.Cache)}
}

func (m *Memory) RemoveCache(_ context.Context, geocode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, geocode)
	return nil
}

func (m *Memory) SaveCache(_ context.Context, c geocache.Cache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[c.Geocode]; ok {
		return ErrExists
	}
	c.Waypoints = slices.Clone(c.Waypoints)
	m.caches[c.Geocode] = c
	return nil
}

func (m *Memory) GetCache(_ context.Context, geocode string) (geocache.Cache, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[geocode]
	if !ok {
		return geocache.Cache{}, ErrNotFound
	}
	c.Waypoints = slices.Clone(c.Waypoints)
	return c, nil
}

func (m *Memory) ListCaches(_ context.Context, listID, limit int) ([]geocache.Cache, error) {
	limit = clampLimit(limit, ListLimit, ListLimit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]geocache.Cache, 0, len(m.caches))
	for _, c := range m.caches {
		if listID > 0 && c.ListID != listID {
			continue
		}
		c.Waypoints = slices.Clone(c.Waypoints)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Geocode < out[j].Geocode })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountCaches(_ context.Context, listID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if listID <= 0 {
		return len(m.caches), nil
	}
	n := 0
	for _, c := range m.caches {
		if c.ListID == listID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) RecordImport(_ context.Context, rec ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, rec)
	return nil
}

func (m *Memory) RecentImports(_ context.Context, limit int) ([]ImportRecord, error) {
	limit = clampLimit(limit, DefaultHistoryLimit, ListLimit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ImportRecord, 0, min(limit, len(m.history)))
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

func (m *Memory) PruneImports(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[:0]
	for _, rec := range m.history {
		if !rec.FinishedAt.Before(before) {
			kept = append(kept, rec)
		}
	}
	pruned := int64(len(m.history) - len(kept))
	clear(m.history[len(kept):])
	m.history = kept
	return pruned, nil
}

func (m *Memory) Close() error { return nil }
