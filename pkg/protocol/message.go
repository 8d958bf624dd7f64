// Package protocol defines the frames exchanged between the browser client
// and a live session.
package protocol

import "maps"

// Frame events.
const (
	// EventJoin is the first client frame; the server answers with a full
	// patch of every root.
	EventJoin = "join"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat = "heartbeat"
	// EventReply acknowledges a client frame by ref.
	EventReply = "reply"
	// EventPatch carries changed patch roots, id -> outer HTML.
	EventPatch = "patch"
	// EventError reports a failed client frame by ref.
	EventError = "error"
)

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Message is one frame. Any event that is not a protocol event is a page
// event (switch_language, select_tab, ...).
type Message struct {
	Ref     string         `json:"ref,omitempty" msgpack:"ref,omitempty"`
	Event   string         `json:"event" msgpack:"event"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
	// Version orders patches; it is zero on client frames.
	Version uint64 `json:"v,omitempty" msgpack:"v,omitempty"`
}

// IsControl reports whether m is a protocol frame rather than a page event.
func (m *Message) IsControl() bool {
	switch m.Event {
	case EventJoin, EventHeartbeat, EventReply, EventPatch, EventError:
		return true
	}
	return false
}

// Reply acknowledges ref.
func Reply(ref string, response map[string]any) *Message {
	payload := map[string]any{"status": StatusOK}
	if len(response) > 0 {
		payload["response"] = response
	}
	return &Message{Ref: ref, Event: EventReply, Payload: payload}
}

// ErrorReply reports that the frame with ref failed.
func ErrorReply(ref, reason string) *Message {
	return &Message{
		Ref:     ref,
		Event:   EventError,
		Payload: map[string]any{"status": StatusError, "reason": reason},
	}
}

// Patch carries changed roots at version.
func Patch(version uint64, roots map[string]string) *Message {
	payload := make(map[string]any, len(roots))
	for id, html := range roots {
		payload[id] = html
	}
	return &Message{Event: EventPatch, Version: version, Payload: payload}
}

// Roots returns the patch roots of a patch frame.
func (m *Message) Roots() map[string]string {
	out := make(map[string]string, len(m.Payload))
	for id, v := range m.Payload {
		if s, ok := v.(string); ok {
			out[id] = s
		}
	}
	return out
}

// Params returns a copy of the payload, never nil.
func (m *Message) Params() map[string]any {
	if m.Payload == nil {
		return map[string]any{}
	}
	return maps.Clone(m.Payload)
}
