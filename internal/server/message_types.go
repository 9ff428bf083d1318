package server

// MessageType represents a WebSocket message type with type safety.
type MessageType string

const (
	// Client to server messages
	MessageTypeHostNewGame   MessageType = "host_new_game"
	MessageTypeUserLogin     MessageType = "user_login"
	MessageTypeHostStartGame MessageType = "host_start_game"
	MessageTypePlayerHand    MessageType = "player_hand"

	// Server to client messages
	MessageTypeRoomCreated MessageType = "room_created"
	MessageTypePartyUpdate MessageType = "party_update"
	MessageTypeGameStart   MessageType = "game_start"
	MessageTypeServerHand  MessageType = "server_hand"
	MessageTypeRoomClosed  MessageType = "room_closed"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	return string(mt)
}
