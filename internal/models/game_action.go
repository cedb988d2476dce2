// internal/models/game_action.go
package models

// GameAction is a single inbound verb from a connection, decoded off
// the wire before it reaches the engine.
type GameAction struct {
	ActionType string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
