package types

// Event represents a typed event emitted by a settlement operation. The
// attribute map carries string-rendered payload fields so external indexers
// never need the engine's internal types to decode it.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a copy of the event with its own attribute map.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
