package api

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/salvo/pkg/engine"
)

// Registry defaults
const (
	DefaultMaxGames = 1024
	DefaultGameTTL  = 30 * time.Minute
)

// ErrGameNotFound is returned for unknown or expired game handles.
var ErrGameNotFound = errors.New("game not found")

// GameEntry is a live game behind a handle. Game itself is single-owner, so
// callers hold the entry lock while stepping it.
type GameEntry struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	game     *engine.Game
	lastUsed atomic.Int64 // UnixNano
}

// With runs fn with exclusive access to the game.
func (e *GameEntry) With(fn func(g *engine.Game) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.game)
}

// Registry is an in-memory table of live games keyed by UUID handle.
// When full, the least recently used game is evicted.
type Registry struct {
	games map[string]*GameEntry
	max   int
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// NewRegistry creates a registry holding at most maxGames games that expire
// after ttl without use. Non-positive values select the defaults.
func NewRegistry(maxGames int, ttl time.Duration) *Registry {
	if maxGames <= 0 {
		maxGames = DefaultMaxGames
	}
	if ttl <= 0 {
		ttl = DefaultGameTTL
	}
	return &Registry{
		games: make(map[string]*GameEntry),
		max:   maxGames,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Add stores g under a new handle.
func (r *Registry) Add(g *engine.Game) *GameEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.games) >= r.max {
		r.evictOldestLocked()
	}

	now := r.now()
	entry := &GameEntry{
		ID:      uuid.NewString(),
		Created: now,
		game:    g,
	}
	entry.lastUsed.Store(now.UnixNano())
	r.games[entry.ID] = entry
	return entry
}

// Get returns the entry for id and marks it used.
func (r *Registry) Get(id string) (*GameEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrGameNotFound
	}

	r.mu.RLock()
	entry, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrGameNotFound
	}

	entry.lastUsed.Store(r.now().UnixNano())
	return entry, nil
}

// Delete removes the game for id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[id]; !ok {
		return ErrGameNotFound
	}
	delete(r.games, id)
	return nil
}

// Len returns the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Prune drops games idle for longer than the TTL and returns how many were
// removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, entry := range r.games {
		if entry.idleSince().Before(cutoff) {
			delete(r.games, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range r.games {
		used := entry.idleSince()
		if oldestID == "" || used.Before(oldest) {
			oldestID, oldest = id, used
		}
	}
	if oldestID != "" {
		delete(r.games, oldestID)
	}
}

func (e *GameEntry) idleSince() time.Time {
	return time.Unix(0, e.lastUsed.Load())
}
