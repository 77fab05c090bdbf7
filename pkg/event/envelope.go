package event

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every message a client emits towards the push server so the
// server can attribute room joins to the emitting connection.
type Envelope struct {
	ClientID string          `json:"clientId"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ServerSubject is where a client publishes an emitted event.
func ServerSubject(prefix, evt string) string {
	return fmt.Sprintf("%s.server.%s", prefix, evt)
}

// ClientSubject is where the server delivers events addressed to one client,
// including events of the rooms that client joined.
func ClientSubject(prefix, clientID, evt string) string {
	return fmt.Sprintf("%s.client.%s.%s", prefix, clientID, evt)
}

// BroadcastSubject is where the server delivers events meant for every client.
func BroadcastSubject(prefix, evt string) string {
	return fmt.Sprintf("%s.broadcast.%s", prefix, evt)
}
