package room

// Roster reconciliation: the state transitions a participant moves
// through inside a room (spectating, seated, removed). Each method is
// atomic under the room mutex; per-connection message processing is
// already serial, so racing transitions for the same token resolve by
// last-write-wins.

// Join adds the token to the spectator set. Tokens already present in
// either set are left where they are (the caller refreshes the profile
// separately), so repeated joins never duplicate a roster entry.
//
// Postcondition: Returns ErrRoomFull — with no state change — when the
// token is new and the room is at capacity.
func (r *Room) Join(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.containsLocked(token) {
		return nil
	}
	if r.occupancyLocked() >= r.capacity {
		return ErrRoomFull
	}
	r.spectators = append(r.spectators, token)
	return nil
}

// TakeSeat moves the token into the seated-player set and assigns the
// given slot.
//
// A token already seated keeps its position in the turn order (in-place
// update); its previous slot is vacated. A spectator is moved out of
// the spectator set in the same critical section, so the sets never
// overlap even momentarily for observers holding a snapshot.
//
// Postcondition: On error (ErrSlotOutOfRange, ErrSlotTaken, ErrRoomFull
// for a token not yet in the room) no state changes.
func (r *Room) TakeSeat(token string, slot int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.seats) {
		return ErrSlotOutOfRange
	}
	if held := r.seats[slot]; held != "" && held != token {
		return ErrSlotTaken
	}
	if !r.containsLocked(token) && r.occupancyLocked() >= r.capacity {
		return ErrRoomFull
	}

	// Remove-then-add: spectator membership is cleared before the
	// player set gains the token.
	r.spectators = remove(r.spectators, token)
	if indexOf(r.players, token) < 0 {
		r.players = append(r.players, token)
	}

	// Vacate any seat the token already held, then claim the new one.
	for i, held := range r.seats {
		if held == token {
			r.seats[i] = ""
		}
	}
	r.seats[slot] = token
	return nil
}

// Leave removes the token's seat assignment and player-set membership.
// Spectator membership is also removed unless a round is in progress
// (or the client announced a reload) and at least two occupants remain
// — in that case the token stays in the spectator set so remaining
// clients can render a disconnected indicator, and the caller is
// expected to set the participant's hasLeft flag.
//
// Unknown tokens are a no-op; disconnect races are expected.
//
// Postcondition: kept reports whether the token remains as a flagged
// spectator; empty reports whether both sets are now empty, in which
// case the caller deletes the room.
func (r *Room) Leave(token string, isReload bool) (kept, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.containsLocked(token) {
		return false, len(r.players) == 0 && len(r.spectators) == 0
	}

	occupancyBefore := r.occupancyLocked()

	for i, held := range r.seats {
		if held == token {
			r.seats[i] = ""
		}
	}
	r.players = remove(r.players, token)

	if (r.roundActive || isReload) && occupancyBefore > 2 {
		if indexOf(r.spectators, token) < 0 {
			r.spectators = append(r.spectators, token)
		}
		kept = true
	} else {
		r.spectators = remove(r.spectators, token)
	}

	empty = len(r.players) == 0 && len(r.spectators) == 0
	return kept, empty
}
