// Package websocket streams newly indexed contract creations to clients.
package websocket

import "encoding/json"

// Message types exchanged with clients
const (
	TypeContract    = "contract"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
	TypeSuccess     = "success"
)

// Message is the envelope of every frame
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribeRequest narrows a client's stream to one chain. A client with
// no subscriptions receives every chain.
type SubscribeRequest struct {
	ChainID string `json:"chainId"`
}

// ErrorMessage is the payload of an error frame
type ErrorMessage struct {
	Error string `json:"error"`
}

// SuccessMessage is the payload of a success frame
type SuccessMessage struct {
	Message string `json:"message"`
}
