package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload any `json:"payload"`
}

// Actions a client may send.
const (
	ActionPing  = "ping"
	ActionPong  = "pong"
	ActionError = "error"
)

// NewErrorMessage encodes an error message for a single client.
func NewErrorMessage(text string) []byte {
	return encode(Message{Action: ActionError, Payload: map[string]string{"message": text}})
}

// NewPongMessage encodes the reply to an application-level ping.
func NewPongMessage() []byte {
	return encode(Message{Action: ActionPong})
}

func encode(msg Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		// Only string payloads are encoded here.
		return []byte(`{"action":"error"}`)
	}
	return b
}
