// Package room provides the room entity, the process-wide room store,
// and the roster reconciliation rules that keep seating state
// consistent under concurrent senders.
package room

import (
	"encoding/json"
	"sync"
)

// Room is one isolated game session. It holds the seating grid, the
// ordered seated-player set (turn order derives from it), the
// spectator set, the shared round flag, and the opaque dealer blob.
//
// All mutations go through methods that hold the room's mutex; the
// reference behavior this replaces had no per-room serialization and
// could lose updates under concurrent senders in the same room.
//
// Invariant: players and spectators are disjoint; a token holds at most
// one seat; every seated token is in players.
type Room struct {
	id string

	mu          sync.Mutex
	seats       []string // token per slot, "" when vacant
	players     []string // seated tokens in turn order
	spectators  []string // insertion order
	roundActive bool
	dealerState json.RawMessage // client-computed, never interpreted
	capacity    int
}

// New creates an empty room with the given identity and sizing.
//
// Precondition: id must be non-empty; seats >= 1; capacity >= seats.
func New(id string, seats, capacity int) *Room {
	return &Room{
		id:       id,
		seats:    make([]string, seats),
		capacity: capacity,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// SetRoundActive sets the shared round-in-progress flag.
func (r *Room) SetRoundActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roundActive = active
}

// RoundActive reports whether a round is in progress.
func (r *Room) RoundActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roundActive
}

// SetDealerState stores the opaque dealer blob pushed by a client.
func (r *Room) SetDealerState(raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dealerState = raw
}

// DealerState returns the last dealer blob, or nil if none was pushed.
func (r *Room) DealerState() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dealerState
}

// Contains reports whether the token is in the player or spectator set.
func (r *Room) Contains(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containsLocked(token)
}

// Occupancy returns the number of distinct tokens in the room.
func (r *Room) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupancyLocked()
}

// Empty reports whether both the player and spectator sets are empty.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0 && len(r.spectators) == 0
}

// Roster is a point-in-time snapshot of a room's membership. Fan-out
// iterates snapshots so sends happen outside the room lock; a
// participant added mid-broadcast may or may not receive that
// broadcast, which the at-most-once delivery model allows.
type Roster struct {
	// Players holds seated tokens in turn order.
	Players []string
	// Spectators holds unseated tokens in insertion order.
	Spectators []string
	// Seats holds one token per slot, "" when vacant.
	Seats []string
	// RoundActive mirrors the shared round flag at snapshot time.
	RoundActive bool
}

// Snapshot returns a copy of the room's membership state.
func (r *Room) Snapshot() Roster {
	r.mu.Lock()
	defer r.mu.Unlock()

	ros := Roster{
		Players:     make([]string, len(r.players)),
		Spectators:  make([]string, len(r.spectators)),
		Seats:       make([]string, len(r.seats)),
		RoundActive: r.roundActive,
	}
	copy(ros.Players, r.players)
	copy(ros.Spectators, r.spectators)
	copy(ros.Seats, r.seats)
	return ros
}

// Tokens returns the union of players and spectators, deduplicated.
// This is the broadcast audience for room-wide fan-out.
func (r *Room) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.players)+len(r.spectators))
	tokens := make([]string, 0, len(r.players)+len(r.spectators))
	for _, t := range r.players {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	for _, t := range r.spectators {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func (r *Room) containsLocked(token string) bool {
	return indexOf(r.players, token) >= 0 || indexOf(r.spectators, token) >= 0
}

// occupancyLocked counts distinct tokens. The sets are disjoint by
// invariant, so this is just the sum of both lengths.
func (r *Room) occupancyLocked() int {
	return len(r.players) + len(r.spectators)
}

func indexOf(list []string, token string) int {
	for i, t := range list {
		if t == token {
			return i
		}
	}
	return -1
}

func remove(list []string, token string) []string {
	i := indexOf(list, token)
	if i < 0 {
		return list
	}
	return append(list[:i], list[i+1:]...)
}
