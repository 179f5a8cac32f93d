package types

// Event is a structured notification emitted by an engine after a state
// change commits. Attributes are flat string pairs so downstream consumers
// (RPC subscribers, audit sinks) can index them without schema knowledge.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
