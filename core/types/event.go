package types

// Event represents a typed event emitted during vault state transitions.
type Event struct {
	Type       string            `json:"type"`
	Epoch      uint64            `json:"epoch"`
	Attributes map[string]string `json:"attributes"`
}
