package server

import (
	"encoding/json"
	"time"
)

// Message is the base WebSocket message structure: one JSON object per
// text frame, discriminated by Type.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Encode serializes the message for a single outbound frame.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Client → Server Messages

type HostNewGameData struct {
	UserName string `json:"user_name"`
	UserType string `json:"user_type"`
}

type UserLoginData struct {
	UserName string `json:"user_name"`
	UserType string `json:"user_type"`
	RoomCode string `json:"room_code"`
}

type HostStartGameData struct {
	RoomCode string `json:"room_code"`
}

type PlayerHandData struct {
	UserName string `json:"user_name"`
	RoomCode string `json:"room_code"`
	Hand     string `json:"hand"`
}

// Server → Client Messages

type RoomCreatedData struct {
	RoomCode string `json:"room_code"`
	Message  string `json:"message,omitempty"`
}

type PartyUpdateData struct {
	RoomCode string   `json:"room_code"`
	Users    []string `json:"users"`
}

type GameStartData struct {
	RoomCode string `json:"room_code"`
}

type ServerHandData struct {
	Hand    string `json:"hand"`
	Outcome string `json:"outcome"`
}

type RoomClosedData struct {
	RoomCode string `json:"room_code"`
	Reason   string `json:"reason,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
