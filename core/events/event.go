package events

// Event represents a structured state change published to downstream
// subscribers. Emitted events are informational; the persisted audit log kept
// by the ledger is the authoritative record.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller has not wired a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder collects every emitted event in order. Intended for tests and
// in-process subscribers that drain the slice themselves.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.Events = append(r.Events, evt)
}
