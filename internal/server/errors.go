package server

import "errors"

var (
	// ErrRoomNotFound is returned when a room code has no live room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrGameAlreadyStarted rejects late joiners once a round begins.
	ErrGameAlreadyStarted = errors.New("game already started")

	// ErrMemberNotFound is returned when a connection is not a member
	// of the addressed room.
	ErrMemberNotFound = errors.New("member not found")

	// ErrUnauthorized is returned when a non-host issues an
	// administrative request such as starting the game.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateConnection signals a registry invariant violation:
	// the same connection id registered twice.
	ErrDuplicateConnection = errors.New("connection id already registered")

	// ErrConnectionClosed is returned when enqueueing on a connection
	// that has shut down.
	ErrConnectionClosed = errors.New("connection closed")
)
