package catalog

import (
	"encoding/json"
	"time"
)

// Message is one frame pushed from the server to a client.
type Message struct {
	Channel string          `json:"channel"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Control actions a client may send.
const (
	JoinRoomAction  = "join-room"
	LeaveRoomAction = "leave-room"
	PingAction      = "ping"
)

// ControlMessage is one frame sent from a client to the server.
type ControlMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// Product is the catalog entity as seen by clients.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Price       float64   `json:"price"`
	Stock       int64     `json:"stock"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type StockPayload struct {
	ID    string `json:"id"`
	Stock int64  `json:"stock"`
}

type DeletedPayload struct {
	ID string `json:"id"`
}

// AdminProductPayload is the created/updated payload on admin channels.
type AdminProductPayload struct {
	Product
	CommittedAt time.Time `json:"committedAt"`
}

type AdminStockPayload struct {
	ID            string    `json:"id"`
	Stock         int64     `json:"stock"`
	PreviousStock int64     `json:"previousStock"`
	Delta         int64     `json:"delta"`
	CommittedAt   time.Time `json:"committedAt"`
}

type AdminDeletedPayload struct {
	ID          string    `json:"id"`
	CommittedAt time.Time `json:"committedAt"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

// Error codes carried by ErrorPayload.
const (
	CodeInvalidRoom    = "INVALID_ROOM"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeRateLimited    = "RATE_LIMITED"
)

// NewMessage encodes payload into a Message for the given channel and room.
func NewMessage(channel, room string, payload any) (*Message, error) {
	msg := &Message{Channel: channel, Room: room}
	if payload == nil {
		return msg, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = raw

	return msg, nil
}
