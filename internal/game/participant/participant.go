// Package participant provides connection identity tracking and the
// per-connection profile that rooms reference by token.
package participant

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Participant is the game-visible state of one connection.
//
// The relay owns the identity, profile, and flag fields. The remaining
// fields (cards, sum, aces, blackjack) are client-computed blobs the
// relay stores and rebroadcasts without interpreting them.
//
// Invariant: Token never changes after creation.
type Participant struct {
	mu sync.Mutex

	// Token is the opaque per-connection identity issued at connect time.
	Token string `json:"clientId"`
	// Nickname is the display name supplied on join.
	Nickname string `json:"nickname"`
	// Avatar is the avatar reference supplied on join.
	Avatar string `json:"avatar"`
	// Balance is the running chip balance.
	Balance int `json:"balance"`
	// IsReady reports whether the participant has readied up for the next round.
	IsReady bool `json:"isReady"`
	// HasLeft marks a participant kept in the roster after disconnecting mid-round.
	HasLeft bool `json:"hasLeft"`

	// Client-owned state, never interpreted by the relay.
	Bet       json.RawMessage `json:"bet,omitempty"`
	Cards     json.RawMessage `json:"cards,omitempty"`
	Sum       json.RawMessage `json:"sum,omitempty"`
	HasAce    json.RawMessage `json:"hasAce,omitempty"`
	Blackjack json.RawMessage `json:"blackjack,omitempty"`
}

// NewParticipant creates a Participant with the default profile.
//
// Precondition: token must be non-empty.
func NewParticipant(token string, startingBalance int) *Participant {
	return &Participant{
		Token:   token,
		Balance: startingBalance,
	}
}

// SetProfile updates the display name and avatar in place.
func (p *Participant) SetProfile(nickname, avatar string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Nickname = nickname
	p.Avatar = avatar
}

// SetReady sets the ready flag.
func (p *Participant) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IsReady = ready
}

// SetHasLeft sets the disconnected-indicator flag.
func (p *Participant) SetHasLeft(left bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HasLeft = left
}

// ApplyState merges a client-supplied player object into the participant.
// Absent fields are left untouched; the token field may not change.
//
// Precondition: raw must be a JSON object.
// Postcondition: Returns an error if raw is malformed or carries a
// different clientId; the participant is unchanged on error.
func (p *Participant) ApplyState(raw json.RawMessage) error {
	var incoming struct {
		Token string `json:"clientId"`
	}
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("parsing player state: %w", err)
	}
	if incoming.Token != "" && incoming.Token != p.Token {
		return fmt.Errorf("player state for %q applied to %q", incoming.Token, p.Token)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Unmarshal over a shadow copy so a partial decode never leaves the
	// participant half-updated.
	shadow := view{
		Token:     p.Token,
		Nickname:  p.Nickname,
		Avatar:    p.Avatar,
		Balance:   p.Balance,
		IsReady:   p.IsReady,
		HasLeft:   p.HasLeft,
		Bet:       p.Bet,
		Cards:     p.Cards,
		Sum:       p.Sum,
		HasAce:    p.HasAce,
		Blackjack: p.Blackjack,
	}
	if err := json.Unmarshal(raw, &shadow); err != nil {
		return fmt.Errorf("merging player state: %w", err)
	}

	p.Nickname = shadow.Nickname
	p.Avatar = shadow.Avatar
	p.Balance = shadow.Balance
	p.IsReady = shadow.IsReady
	p.HasLeft = shadow.HasLeft
	p.Bet = shadow.Bet
	p.Cards = shadow.Cards
	p.Sum = shadow.Sum
	p.HasAce = shadow.HasAce
	p.Blackjack = shadow.Blackjack
	return nil
}

// view mirrors Participant's wire shape without the mutex so it can be
// marshalled and unmarshalled freely.
type view struct {
	Token     string          `json:"clientId"`
	Nickname  string          `json:"nickname"`
	Avatar    string          `json:"avatar"`
	Balance   int             `json:"balance"`
	IsReady   bool            `json:"isReady"`
	HasLeft   bool            `json:"hasLeft"`
	Bet       json.RawMessage `json:"bet,omitempty"`
	Cards     json.RawMessage `json:"cards,omitempty"`
	Sum       json.RawMessage `json:"sum,omitempty"`
	HasAce    json.RawMessage `json:"hasAce,omitempty"`
	Blackjack json.RawMessage `json:"blackjack,omitempty"`
}

// Snapshot marshals the participant's current wire representation.
//
// Postcondition: Returns a self-contained JSON object; concurrent
// mutations after return are not reflected.
func (p *Participant) Snapshot() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(view{
		Token:     p.Token,
		Nickname:  p.Nickname,
		Avatar:    p.Avatar,
		Balance:   p.Balance,
		IsReady:   p.IsReady,
		HasLeft:   p.HasLeft,
		Bet:       p.Bet,
		Cards:     p.Cards,
		Sum:       p.Sum,
		HasAce:    p.HasAce,
		Blackjack: p.Blackjack,
	})
	if err != nil {
		// view contains only marshallable fields; this cannot fail.
		panic("participant: marshalling snapshot: " + err.Error())
	}
	return data
}
