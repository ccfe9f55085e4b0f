package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	counter   int64
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store backed by a mutex-guarded map. Expired
// entries are dropped lazily on access and swept whenever the map grows
// past sweepThreshold.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

const sweepThreshold = 4096

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.expired(time.Now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	if entry.value == "" && entry.counter != 0 {
		return strconv.FormatInt(entry.counter, 10), true, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	now := time.Now()
	entry, ok := m.entries[key]
	if !ok || entry.expired(now) {
		entry = memoryEntry{}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
	}
	entry.counter++
	m.entries[key] = entry
	return entry.counter, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) sweepLocked() {
	if len(m.entries) < sweepThreshold {
		return
	}
	now := time.Now()
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
		}
	}
}
