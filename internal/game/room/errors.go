package room

import "errors"

// Sentinel errors for roster and store operations. All of them are
// recovered locally by callers; none is fatal to the process.
var (
	// ErrRoomNotFound indicates a gameId that resolves to no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull indicates a join that would exceed the occupancy cap.
	ErrRoomFull = errors.New("room is full")
	// ErrSlotTaken indicates a seat grab on a slot held by another token.
	ErrSlotTaken = errors.New("seat already taken")
	// ErrSlotOutOfRange indicates a seat index outside the grid.
	ErrSlotOutOfRange = errors.New("seat index out of range")
	// ErrDuplicateRoom indicates a generated code collided with a live
	// room. The store retries internally; callers never observe it.
	ErrDuplicateRoom = errors.New("duplicate room code")
)
