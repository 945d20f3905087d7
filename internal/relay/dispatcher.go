package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cardparty/relay/internal/game/participant"
	"github.com/cardparty/relay/internal/game/room"
)

// Dispatcher is the session front door's message brain: it resolves the
// sender and target room for each inbound frame, applies the roster
// transition if the message changes roster or seating, and hands the
// resulting payload to the broadcaster.
type Dispatcher struct {
	store    *room.Store
	registry *participant.Registry
	fanout   *Broadcaster
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewDispatcher(store *room.Store, registry *participant.Registry, fanout *Broadcaster, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		fanout:   fanout,
		logger:   logger,
	}
}

// OnConnect sends the connection acknowledgment carrying the minted
// token and the default profile.
func (d *Dispatcher) OnConnect(sess *participant.Session) {
	d.fanout.ToToken(sess.Token(), connectAck{
		Method:    MethodConnect,
		ClientID:  sess.Token(),
		TheClient: sess.Participant.Snapshot(),
	})
}

// HandleMessage processes one inbound frame from the session.
//
// Postcondition: Returns a non-nil error only for frames that could not
// be parsed at all; that terminates the offending connection's read
// loop and nothing else. Roster conflicts and unknown rooms are
// recovered locally.
func (d *Dispatcher) HandleMessage(sess *participant.Session, raw []byte) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}

	if env.Method == MethodCreate {
		d.handleCreate(sess)
		return nil
	}

	r, err := d.store.Fetch(env.GameID)
	if err != nil {
		// Disconnect races make stale gameIds routine; most methods
		// no-op silently. The two join paths tell the sender so
		// lobby screens can react.
		switch env.Method {
		case MethodJoin, MethodJoinTable:
			d.sendError(sess.Token(), fmt.Sprintf("game %q not found", env.GameID))
		case MethodPlayersLength:
			d.fanout.ToToken(sess.Token(), playersLengthReply{
				Method: MethodPlayersLength,
				GameID: env.GameID,
			})
		default:
			d.logger.Debug("message for unknown room",
				zap.String("method", env.Method),
				zap.Error(err),
			)
		}
		return nil
	}

	switch env.Method {
	case MethodJoin:
		d.handleJoin(sess, r, env)
	case MethodJoinTable:
		d.handleJoinTable(sess, r, env)
	case MethodBet:
		d.applyPlayerState(env.Player)
		d.fanout.ToRoom(r, betBroadcast{
			Method:  MethodBet,
			Players: d.present(r.Snapshot().Players),
		})
	case MethodDeck:
		if env.GameOn != nil {
			r.SetRoundActive(*env.GameOn)
		}
		d.fanout.ToRoom(r, deckBroadcast{
			Method:     MethodDeck,
			Deck:       env.Deck,
			GameOn:     r.RoundActive(),
			ClientDeal: env.ClientDeal,
		})
	case MethodIsReady:
		d.handleIsReady(r, env)
	case MethodUpdateDealerCards:
		r.SetDealerState(env.Dealer)
		d.fanout.ToRoom(r, dealerCardsBroadcast{
			Method:  MethodUpdateDealerCards,
			Dealer:  env.Dealer,
			Player:  env.Player,
			Players: d.present(r.Snapshot().Players),
		})
	case MethodUpdatePlayerCards:
		d.applyPlayerState(env.Player)
		d.fanout.ToRoom(r, playerCardsBroadcast{
			Method:     MethodUpdatePlayerCards,
			Players:    d.present(r.Snapshot().Players),
			Player:     env.Player,
			ResetCards: env.ResetCards,
		})
	case MethodThePlay:
		d.applyPlayerState(env.Player)
		d.fanout.ToRoom(r, thePlayBroadcast{
			Method:        MethodThePlay,
			Player:        env.Player,
			CurrentPlayer: env.CurrentPlayer,
			Players:       d.present(r.Snapshot().Players),
		})
	case MethodCurrentPlayer:
		d.applyPlayerState(env.Player)
		d.fanout.ToRoom(r, currentPlayerBroadcast{
			Method:  MethodCurrentPlayer,
			Player:  env.Player,
			Players: d.present(r.Snapshot().Players),
		})
	case MethodShowSum:
		d.applyPlayerStates(env.Players)
		d.fanout.ToRoom(r, showSumBroadcast{
			Method:  MethodShowSum,
			Players: env.Players,
		})
	case MethodUpdate:
		d.applyPlayerStates(env.Players)
		if env.GameOn != nil {
			r.SetRoundActive(*env.GameOn)
		}
		r.SetDealerState(env.Dealer)
		d.fanout.ToRoom(r, updateBroadcast{
			Method:  MethodUpdate,
			Players: env.Players,
			Dealer:  env.Dealer,
			Deck:    env.Deck,
			GameOn:  r.RoundActive(),
		})
	case MethodDealersTurn:
		// The round flag only; the reference behavior also dropped a
		// roster entry here, which was a defect.
		if env.DealersTurn != nil {
			r.SetRoundActive(*env.DealersTurn)
		}
		d.fanout.ToRoom(r, dealersTurnBroadcast{
			Method:      MethodDealersTurn,
			DealersTurn: r.RoundActive(),
		})
	case MethodHasLeft:
		d.handleHasLeft(r, env)
	case MethodTerminate:
		d.handleTerminate(sess.Token(), r, env.IsReload)
	case MethodPlayersLength:
		d.fanout.ToToken(sess.Token(), playersLengthReply{
			Method:        MethodPlayersLength,
			PlayersLength: len(r.Snapshot().Players),
			GameID:        env.GameID,
		})
	case MethodJoinMidGame:
		d.fanout.ToRoom(r, joinMidGameBroadcast{
			Method:    MethodJoinMidGame,
			TheClient: env.TheClient,
			Game:      d.gameView(r),
		})
	case MethodJoinMidGameUpdate:
		ros := r.Snapshot()
		d.fanout.ToRoom(r, joinMidGameUpdateBroadcast{
			Method:     MethodJoinMidGameUpdate,
			Spectators: d.present(ros.Spectators),
			NewPlayer:  env.NewPlayer,
			Players:    d.present(ros.Players),
		})
	default:
		d.logger.Debug("unknown method",
			zap.String("method", env.Method),
			zap.String("token", sess.Token()),
		)
	}
	return nil
}

// OnDisconnect runs the closure-triggered cleanup for a token: leave
// every room containing it, broadcast the resulting roster to survivors,
// and drop the registry entry. Safe to call more than once; the second
// call finds nothing to do.
func (d *Dispatcher) OnDisconnect(token string) {
	ghost := false
	for _, r := range d.store.RoomsContaining(token) {
		kept, empty := r.Leave(token, false)
		if kept {
			ghost = true
			if p, ok := d.registry.Get(token); ok {
				p.SetHasLeft(true)
			}
		}
		if empty {
			d.store.DeleteIfEmpty(r.ID())
			continue
		}
		d.broadcastLeave(r)
		d.reapIfAbandoned(r)
	}
	// A ghost's session outlives its transport so later roster
	// broadcasts can still render it; reapIfAbandoned drops it when
	// its last room goes.
	if !ghost {
		d.registry.Remove(token)
	}
}

func (d *Dispatcher) handleCreate(sess *participant.Session) {
	r, err := d.store.Create()
	if err != nil {
		d.logger.Error("creating room", zap.Error(err))
		d.sendError(sess.Token(), "could not create game")
		return
	}
	d.fanout.ToToken(sess.Token(), createAck{
		Method: MethodCreate,
		Game:   d.gameView(r),
		RoomID: r.ID(),
	})
}

func (d *Dispatcher) handleJoin(sess *participant.Session, r *room.Room, env Envelope) {
	d.registry.UpdateProfile(sess.Token(), env.Nickname, env.Avatar)

	// Joining makes the participant present again; stale flags from a
	// room it ghosted out of would render it as gone here.
	sess.Participant.SetHasLeft(false)
	sess.Participant.SetReady(false)

	if err := r.Join(sess.Token()); err != nil {
		if errors.Is(err, room.ErrRoomFull) {
			d.sendError(sess.Token(), "game is full")
			return
		}
		d.logger.Warn("join rejected",
			zap.String("room", r.ID()),
			zap.String("token", sess.Token()),
			zap.Error(err),
		)
		return
	}

	ros := r.Snapshot()
	d.fanout.ToRoom(r, joinBroadcast{
		Method:     MethodJoin,
		Game:       d.gameView(r),
		Players:    d.present(ros.Players),
		Spectators: d.present(ros.Spectators),
		Seats:      seatCells(ros.Seats),
	})
}

func (d *Dispatcher) handleJoinTable(sess *participant.Session, r *room.Room, env Envelope) {
	if env.TheSlot == nil {
		d.sendError(sess.Token(), "no seat given")
		return
	}

	if err := r.TakeSeat(sess.Token(), *env.TheSlot); err != nil {
		switch {
		case errors.Is(err, room.ErrSlotTaken):
			d.sendError(sess.Token(), "seat already taken")
		case errors.Is(err, room.ErrSlotOutOfRange):
			d.sendError(sess.Token(), "no such seat")
		case errors.Is(err, room.ErrRoomFull):
			d.sendError(sess.Token(), "game is full")
		default:
			d.logger.Warn("seat grab rejected",
				zap.String("room", r.ID()),
				zap.String("token", sess.Token()),
				zap.Error(err),
			)
		}
		return
	}

	ros := r.Snapshot()
	d.fanout.ToRoom(r, joinTableBroadcast{
		Method:     MethodJoinTable,
		TheSlot:    *env.TheSlot,
		User:       sess.Participant.Snapshot(),
		Game:       d.gameView(r),
		Players:    d.present(ros.Players),
		Spectators: d.present(ros.Spectators),
		Seats:      seatCells(ros.Seats),
	})
}

func (d *Dispatcher) handleIsReady(r *room.Room, env Envelope) {
	var tc struct {
		ClientID string `json:"clientId"`
		IsReady  bool   `json:"isReady"`
	}
	if err := json.Unmarshal(env.TheClient, &tc); err == nil && tc.ClientID != "" {
		if p, ok := d.registry.Get(tc.ClientID); ok {
			p.SetReady(tc.IsReady)
		}
	}
	d.fanout.ToRoom(r, isReadyBroadcast{
		Method:    MethodIsReady,
		Players:   d.present(r.Snapshot().Players),
		TheClient: env.TheClient,
	})
}

func (d *Dispatcher) handleHasLeft(r *room.Room, env Envelope) {
	var tc struct {
		ClientID string `json:"clientId"`
		HasLeft  bool   `json:"hasLeft"`
	}
	if err := json.Unmarshal(env.TheClient, &tc); err == nil && tc.ClientID != "" {
		if p, ok := d.registry.Get(tc.ClientID); ok {
			p.SetHasLeft(tc.HasLeft)
		}
	}
	ros := r.Snapshot()
	d.fanout.ToRoom(r, hasLeftBroadcast{
		Method:     MethodHasLeft,
		Players:    d.present(ros.Players),
		Spectators: d.present(ros.Spectators),
		TheClient:  env.TheClient,
	})
}

func (d *Dispatcher) handleTerminate(token string, r *room.Room, isReload bool) {
	kept, empty := r.Leave(token, isReload)
	if kept {
		if p, ok := d.registry.Get(token); ok {
			p.SetHasLeft(true)
		}
	}
	if empty {
		d.store.DeleteIfEmpty(r.ID())
		return
	}
	d.broadcastLeave(r)
	d.reapIfAbandoned(r)
}

// reapIfAbandoned deletes a room once no occupant can receive another
// frame. Abandonment is decided by transport state alone: the hasLeft
// flag is client-writable and must never drive room deletion.
func (d *Dispatcher) reapIfAbandoned(r *room.Room) {
	tokens := r.Tokens()
	for _, token := range tokens {
		if sess, ok := d.registry.Lookup(token); ok && sess.Reachable() {
			return
		}
	}
	if !d.store.Delete(r.ID()) {
		return
	}
	// Nothing remains to hold the lingering ghost sessions.
	for _, token := range tokens {
		d.registry.Remove(token)
	}
}

func (d *Dispatcher) broadcastLeave(r *room.Room) {
	ros := r.Snapshot()
	d.fanout.ToRoom(r, leaveBroadcast{
		Method:     MethodLeave,
		Players:    d.present(ros.Players),
		Seats:      seatCells(ros.Seats),
		Spectators: d.present(ros.Spectators),
		Game:       d.gameView(r),
	})
}

func (d *Dispatcher) sendError(token, message string) {
	d.fanout.ToToken(token, errorMessage{
		Method:  MethodError,
		Message: message,
	})
}

// present resolves tokens to participant snapshots, skipping tokens
// whose connection is already gone.
func (d *Dispatcher) present(tokens []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(tokens))
	for _, token := range tokens {
		if p, ok := d.registry.Get(token); ok {
			out = append(out, p.Snapshot())
		}
	}
	return out
}

// gameView builds the room as seen in "game" fields of broadcasts.
func (d *Dispatcher) gameView(r *room.Room) GameView {
	ros := r.Snapshot()
	return GameView{
		ID:         r.ID(),
		Players:    d.present(ros.Players),
		Spectators: d.present(ros.Spectators),
		Seats:      seatCells(ros.Seats),
		GameOn:     ros.RoundActive,
		Dealer:     r.DealerState(),
	}
}

// applyPlayerState merges one client-supplied player object into the
// registered participant it names. Unknown tokens and malformed blobs
// are skipped; gameplay relays must survive disconnect races.
func (d *Dispatcher) applyPlayerState(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var id struct {
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal(raw, &id); err != nil || id.ClientID == "" {
		return
	}
	p, ok := d.registry.Get(id.ClientID)
	if !ok {
		return
	}
	if err := p.ApplyState(raw); err != nil {
		d.logger.Debug("ignoring player state",
			zap.String("token", id.ClientID),
			zap.Error(err),
		)
	}
}

// applyPlayerStates merges a client-supplied player array element by
// element.
func (d *Dispatcher) applyPlayerStates(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return
	}
	for _, item := range list {
		d.applyPlayerState(item)
	}
}
