package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Contract   string            `json:"contract,omitempty"`
	Time       uint64            `json:"time,omitempty"`
	Attributes map[string]string `json:"attributes"`
}
