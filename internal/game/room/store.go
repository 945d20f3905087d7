package room

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cardparty/relay/internal/config"
)

// maxCreateAttempts bounds the collision-retry loop in Create. With a
// 36-character alphabet and 6-character codes the space is ~2.2 billion;
// hitting this limit means the process is tracking an absurd number of
// live rooms.
const maxCreateAttempts = 32

// Store is the process-wide registry of live rooms.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	source   Source
	seats    int
	capacity int
	codeLen  int
	logger   *zap.Logger
}

// NewStore creates an empty Store sized by the given room configuration.
//
// Precondition: cfg must pass config validation; logger must be non-nil.
func NewStore(cfg config.RoomConfig, logger *zap.Logger) *Store {
	return &Store{
		rooms:    make(map[string]*Room),
		source:   NewCryptoSource(),
		seats:    cfg.Seats,
		capacity: cfg.Capacity,
		codeLen:  cfg.CodeLength,
		logger:   logger,
	}
}

// NewStoreWithSource creates a Store with a caller-supplied random
// source, for deterministic tests.
func NewStoreWithSource(cfg config.RoomConfig, src Source, logger *zap.Logger) *Store {
	s := NewStore(cfg, logger)
	s.source = src
	return s
}

// Create generates a collision-checked room code and registers a new
// empty room under it. Code collisions are retried internally and never
// surfaced to callers.
//
// Postcondition: Returns a room that is reachable via Get, or an error
// if the code space is effectively exhausted.
func (s *Store) Create() (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code := newCode(s.source, s.codeLen)
		if _, exists := s.rooms[code]; exists {
			// Collision: retry with a fresh code.
			s.logger.Debug("room code collision", zap.String("code", code))
			continue
		}

		r := New(code, s.seats, s.capacity)
		s.rooms[code] = r
		s.logger.Info("room created",
			zap.String("room", code),
			zap.Int("rooms", len(s.rooms)),
		)
		return r, nil
	}
	return nil, fmt.Errorf("generating room code after %d attempts: %w", maxCreateAttempts, ErrDuplicateRoom)
}

// Get returns the room for the given identifier.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Fetch returns the room for the given identifier, or an error naming it.
//
// Postcondition: A nil error always pairs with a non-nil room; the
// error wraps ErrRoomNotFound otherwise.
func (s *Store) Fetch(id string) (*Room, error) {
	r, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return r, nil
}

// DeleteIfEmpty removes the room if both its player and spectator sets
// are empty. Deletion is eager: the room becomes unreachable as soon as
// the last removal completes.
//
// Postcondition: Returns true if the room was deleted.
func (s *Store) DeleteIfEmpty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok || !r.Empty() {
		return false
	}
	delete(s.rooms, id)
	s.logger.Info("room deleted",
		zap.String("room", id),
		zap.Int("rooms", len(s.rooms)),
	)
	return true
}

// Delete removes the room regardless of its occupancy. Used when every
// remaining occupant is a departed ghost.
//
// Postcondition: Returns true if the room existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return false
	}
	delete(s.rooms, id)
	s.logger.Info("room deleted",
		zap.String("room", id),
		zap.Int("rooms", len(s.rooms)),
	)
	return true
}

// RoomsContaining returns every live room whose roster includes the
// token. Disconnect cleanup walks this list.
func (s *Store) RoomsContaining(token string) []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Room
	for _, r := range s.rooms {
		if r.Contains(token) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
