package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage marshals an event payload for broadcast. Marshalling a
// plain struct cannot fail, so errors are swallowed here.
func NewEventMessage(payload interface{}) []byte {
	b, _ := json.Marshal(Message{Action: "event", Payload: payload})
	return b
}
