// Package cache stores extracted pages so repeated audits of unchanged pages skip the network.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/docutag/seo-scraper/models"
)

// PageCache stores successful PageRecords. Keys are chosen by the caller and
// usually combine the URL with a fingerprint of the extraction settings.
type PageCache interface {
	// Get returns the record stored under key; ok is false on a miss
	Get(ctx context.Context, key string) (record models.PageRecord, ok bool, err error)
	// Set stores record under key
	Set(ctx context.Context, key string, record models.PageRecord) error
	Close() error
}

type memoryEntry struct {
	record  models.PageRecord
	expires time.Time
}

// Memory is an in-process PageCache with per-entry expiry
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an in-memory cache; ttl <= 0 keeps entries forever
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements PageCache
func (m *Memory) Get(_ context.Context, key string) (models.PageRecord, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return models.PageRecord{}, false, nil
	}
	if m.expired(entry) {
		m.mu.Lock()
		// a Set may have replaced the entry since the read lock was released
		if current, ok := m.entries[key]; ok && m.expired(current) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return models.PageRecord{}, false, nil
	}
	return entry.record, true, nil
}

func (m *Memory) expired(entry memoryEntry) bool {
	return !entry.expires.IsZero() && m.now().After(entry.expires)
}

// Set implements PageCache
func (m *Memory) Set(_ context.Context, key string, record models.PageRecord) error {
	entry := memoryEntry{record: record}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements PageCache
func (m *Memory) Close() error {
	return nil
}
