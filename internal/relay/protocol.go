// Package relay implements the wire protocol, message dispatch, and
// event fan-out of the card-table relay. The relay owns roster and
// seating fields; card and score content travels through it as opaque
// JSON the clients compute among themselves.
package relay

import (
	"encoding/json"
	"fmt"
)

// Inbound method names, matching the original client protocol.
const (
	MethodCreate            = "create"
	MethodJoin              = "join"
	MethodJoinTable         = "joinTable"
	MethodBet               = "bet"
	MethodDeck              = "deck"
	MethodIsReady           = "isReady"
	MethodUpdateDealerCards = "updateDealerCards"
	MethodUpdatePlayerCards = "updatePlayerCards"
	MethodThePlay           = "thePlay"
	MethodCurrentPlayer     = "currentPlayer"
	MethodShowSum           = "showSum"
	MethodUpdate            = "update"
	MethodDealersTurn       = "dealersTurn"
	MethodHasLeft           = "hasLeft"
	MethodTerminate         = "terminate"
	MethodPlayersLength     = "playersLength"
	MethodJoinMidGame       = "joinMidGame"
	MethodJoinMidGameUpdate = "joinMidGameUpdate"
)

// Outbound-only method names.
const (
	MethodConnect = "connect"
	MethodLeave   = "leave"
	MethodError   = "error"
)

// Envelope is the superset of inbound message fields. Method and GameID
// are the only fields the dispatcher requires; the rest are read by the
// handlers that care about them and passed through otherwise.
type Envelope struct {
	Method string `json:"method"`
	GameID string `json:"gameId"`

	// join
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`

	// joinTable
	TheSlot *int `json:"theSlot"`

	// deck / update
	GameOn *bool `json:"gameOn"`
	// dealersTurn
	DealersTurn *bool `json:"dealersTurn"`
	// terminate
	IsReload bool `json:"isReload"`

	// Client-computed blobs, stored or passed through untouched.
	Player        json.RawMessage `json:"player"`
	Players       json.RawMessage `json:"players"`
	TheClient     json.RawMessage `json:"theClient"`
	NewPlayer     json.RawMessage `json:"newPlayer"`
	Dealer        json.RawMessage `json:"dealer"`
	Deck          json.RawMessage `json:"deck"`
	ClientDeal    json.RawMessage `json:"clientDeal"`
	ResetCards    json.RawMessage `json:"resetCards"`
	CurrentPlayer json.RawMessage `json:"currentPlayer"`
}

// ParseEnvelope decodes an inbound frame.
//
// Postcondition: Returns an error only for malformed JSON or a missing
// method; unknown methods parse fine and are rejected at dispatch.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("parsing message: %w", err)
	}
	if env.Method == "" {
		return Envelope{}, fmt.Errorf("message has no method")
	}
	return env, nil
}

// SeatCell marshals a seat grid cell the way the original clients
// expect: a bare token string when occupied, an empty object when
// vacant.
type SeatCell string

// MarshalJSON implements json.Marshaler.
func (c SeatCell) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("{}"), nil
	}
	return json.Marshal(string(c))
}

// seatCells converts a seat snapshot to its wire form.
func seatCells(seats []string) []SeatCell {
	cells := make([]SeatCell, len(seats))
	for i, s := range seats {
		cells[i] = SeatCell(s)
	}
	return cells
}

// GameView is the room as clients see it in "game" fields.
type GameView struct {
	ID         string            `json:"id"`
	Players    []json.RawMessage `json:"players"`
	Spectators []json.RawMessage `json:"spectators"`
	Seats      []SeatCell        `json:"playerSlotHTML"`
	GameOn     bool              `json:"gameOn"`
	Dealer     json.RawMessage   `json:"dealer,omitempty"`
}

// Outbound payloads. Field names follow the original wire surface so
// existing clients keep working.

type connectAck struct {
	Method    string          `json:"method"`
	ClientID  string          `json:"clientId"`
	TheClient json.RawMessage `json:"theClient"`
}

type createAck struct {
	Method string   `json:"method"`
	Game   GameView `json:"game"`
	RoomID string   `json:"roomId"`
}

type errorMessage struct {
	Method  string `json:"method"`
	Message string `json:"message"`
}

type joinBroadcast struct {
	Method     string            `json:"method"`
	Game       GameView          `json:"game"`
	Players    []json.RawMessage `json:"players"`
	Spectators []json.RawMessage `json:"spectators"`
	Seats      []SeatCell        `json:"playerSlotHTML"`
}

type joinTableBroadcast struct {
	Method     string            `json:"method"`
	TheSlot    int               `json:"theSlot"`
	User       json.RawMessage   `json:"user"`
	Game       GameView          `json:"game"`
	Players    []json.RawMessage `json:"players"`
	Spectators []json.RawMessage `json:"spectators"`
	Seats      []SeatCell        `json:"playerSlotHTML"`
}

type leaveBroadcast struct {
	Method     string            `json:"method"`
	Players    []json.RawMessage `json:"players"`
	Seats      []SeatCell        `json:"playerSlotHTML"`
	Spectators []json.RawMessage `json:"spectators"`
	Game       GameView          `json:"game"`
}

type betBroadcast struct {
	Method  string            `json:"method"`
	Players []json.RawMessage `json:"players"`
}

type deckBroadcast struct {
	Method     string          `json:"method"`
	Deck       json.RawMessage `json:"deck"`
	GameOn     bool            `json:"gameOn"`
	ClientDeal json.RawMessage `json:"clientDeal"`
}

type isReadyBroadcast struct {
	Method    string            `json:"method"`
	Players   []json.RawMessage `json:"players"`
	TheClient json.RawMessage   `json:"theClient"`
}

type dealerCardsBroadcast struct {
	Method  string            `json:"method"`
	Dealer  json.RawMessage   `json:"dealer"`
	Player  json.RawMessage   `json:"player"`
	Players []json.RawMessage `json:"players"`
}

type playerCardsBroadcast struct {
	Method     string            `json:"method"`
	Players    []json.RawMessage `json:"players"`
	Player     json.RawMessage   `json:"player"`
	ResetCards json.RawMessage   `json:"resetCards"`
}

type thePlayBroadcast struct {
	Method        string            `json:"method"`
	Player        json.RawMessage   `json:"player"`
	CurrentPlayer json.RawMessage   `json:"currentPlayer"`
	Players       []json.RawMessage `json:"players"`
}

type currentPlayerBroadcast struct {
	Method  string            `json:"method"`
	Player  json.RawMessage   `json:"player"`
	Players []json.RawMessage `json:"players"`
}

type showSumBroadcast struct {
	Method  string          `json:"method"`
	Players json.RawMessage `json:"players"`
}

type updateBroadcast struct {
	Method  string          `json:"method"`
	Players json.RawMessage `json:"players"`
	Dealer  json.RawMessage `json:"dealer"`
	Deck    json.RawMessage `json:"deck"`
	GameOn  bool            `json:"gameOn"`
}

type dealersTurnBroadcast struct {
	Method      string `json:"method"`
	DealersTurn bool   `json:"dealersTurn"`
}

type hasLeftBroadcast struct {
	Method     string            `json:"method"`
	Players    []json.RawMessage `json:"players"`
	Spectators []json.RawMessage `json:"spectators"`
	TheClient  json.RawMessage   `json:"theClient"`
}

type playersLengthReply struct {
	Method        string `json:"method"`
	PlayersLength int    `json:"playersLength"`
	GameID        string `json:"gameId"`
}

type joinMidGameBroadcast struct {
	Method    string          `json:"method"`
	TheClient json.RawMessage `json:"theClient"`
	Game      GameView        `json:"game"`
}

type joinMidGameUpdateBroadcast struct {
	Method     string            `json:"method"`
	Spectators []json.RawMessage `json:"spectators"`
	NewPlayer  json.RawMessage   `json:"newPlayer"`
	Players    []json.RawMessage `json:"players"`
}
