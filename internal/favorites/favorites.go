// Package favorites holds the shared set of films a user has marked for quick
// access. Views receive a Store explicitly instead of reaching for global state.
package favorites

import (
	"context"
	"errors"
	"sync"

	"github.com/Clark-Hu/moviesandme/internal/domain"
)

// ErrInvalidFilm is returned when a toggle carries a film without an identifier.
var ErrInvalidFilm = errors.New("favorites: film has no id")

// Store is the favorites container shared by every mounted detail view.
type Store interface {
	// Toggle inserts film when absent and removes it when present. It reports
	// whether the film is a favorite after the call.
	Toggle(ctx context.Context, film domain.Film) (added bool, err error)
	// Snapshot returns the current favorites.
	Snapshot(ctx context.Context) (Set, error)
}

// Set is an immutable snapshot of the favorites, in store order.
type Set struct {
	films []domain.Film
	index map[int64]int
}

// NewSet builds a snapshot from films. Later duplicates of an id are ignored.
func NewSet(films []domain.Film) Set {
	s := Set{
		films: make([]domain.Film, 0, len(films)),
		index: make(map[int64]int, len(films)),
	}
	for _, f := range films {
		if _, dup := s.index[f.ID]; dup {
			continue
		}
		s.index[f.ID] = len(s.films)
		s.films = append(s.films, f)
	}
	return s
}

// Contains reports membership by film id.
func (s Set) Contains(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Get returns the stored record for id.
func (s Set) Get(id int64) (domain.Film, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Film{}, false
	}
	return s.films[i], true
}

// Films returns a copy of the snapshot's records.
func (s Set) Films() []domain.Film {
	out := make([]domain.Film, len(s.films))
	copy(out, s.films)
	return out
}

// Len returns the number of favorites.
func (s Set) Len() int {
	return len(s.films)
}

// MemoryStore keeps favorites for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	films []domain.Film
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Toggle implements Store.
func (m *MemoryStore) Toggle(_ context.Context, film domain.Film) (bool, error) {
	if film.ID == 0 {
		return false, ErrInvalidFilm
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, f := range m.films {
		if f.ID == film.ID {
			m.films = append(m.films[:i:i], m.films[i+1:]...)
			return false, nil
		}
	}
	m.films = append(m.films, film)
	return true, nil
}

// Snapshot implements Store.
func (m *MemoryStore) Snapshot(_ context.Context) (Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewSet(m.films), nil
}
