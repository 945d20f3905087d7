package relay

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cardparty/relay/internal/game/participant"
	"github.com/cardparty/relay/internal/game/room"
)

// Broadcaster delivers payloads to room audiences. Delivery is
// best-effort at-most-once: closed or absent transports are skipped,
// nothing is queued or retried. Per-recipient ordering comes from each
// connection's FIFO outbound queue; no ordering is guaranteed across
// recipients of one broadcast.
type Broadcaster struct {
	registry *participant.Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a Broadcaster over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewBroadcaster(registry *participant.Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// ToRoom delivers the payload to every participant of the room: the
// union of seated players and spectators, deduplicated by token. The
// audience is a snapshot; a participant joining mid-broadcast may or
// may not receive this payload.
func (b *Broadcaster) ToRoom(r *room.Room, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshalling broadcast payload",
			zap.String("room", r.ID()),
			zap.Error(err),
		)
		return
	}
	for _, token := range r.Tokens() {
		b.registry.Send(token, data)
	}
}

// ToToken delivers the payload to a single participant, with the same
// open-transport check as room broadcasts.
func (b *Broadcaster) ToToken(token string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshalling direct payload",
			zap.String("token", token),
			zap.Error(err),
		)
		return
	}
	b.registry.Send(token, data)
}
