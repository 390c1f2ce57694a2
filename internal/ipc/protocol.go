package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/treemirror/internal/platform"
)

// EnvelopeType tags every frame on the wire.
type EnvelopeType string

const (
	EnvelopeHello   EnvelopeType = "HELLO"
	EnvelopeRequest EnvelopeType = "REQUEST"
	EnvelopeEvent   EnvelopeType = "EVENT"
)

// Envelope is one JSON text frame. Exactly one of Hello, Request or
// Event/Payload is set, according to Type.
type Envelope struct {
	Type    EnvelopeType      `json:"type"`
	Hello   *Hello            `json:"hello,omitempty"`
	Request *platform.Request `json:"request,omitempty"`
	Event   string            `json:"event,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// Hello is the first frame the server sends on a new connection.
type Hello struct {
	ClientID uint32 `json:"client_id"`
	Session  string `json:"session"`
}

// EncodeEvent wraps an event in an EVENT envelope.
func EncodeEvent(ev platform.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Type: EnvelopeEvent, Event: ev.EventName(), Payload: payload})
}

// EncodeRequest wraps a request in a REQUEST envelope.
func EncodeRequest(req platform.Request) ([]byte, error) {
	return json.Marshal(Envelope{Type: EnvelopeRequest, Request: &req})
}

// ParseEnvelope decodes one frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	switch env.Type {
	case EnvelopeHello:
		if env.Hello == nil {
			return nil, fmt.Errorf("hello envelope without body")
		}
	case EnvelopeRequest:
		if env.Request == nil {
			return nil, fmt.Errorf("request envelope without body")
		}
	case EnvelopeEvent:
	default:
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
	return &env, nil
}

var eventDecoders = map[string]func(json.RawMessage) (platform.Event, error){
	platform.ChangeCompleted{}.EventName():   decodeAs[platform.ChangeCompleted],
	platform.HierarchyChanged{}.EventName():  decodeAs[platform.HierarchyChanged],
	platform.WindowDeleted{}.EventName():     decodeAs[platform.WindowDeleted],
	platform.BoundsChanged{}.EventName():     decodeAs[platform.BoundsChanged],
	platform.VisibilityChanged{}.EventName(): decodeAs[platform.VisibilityChanged],
	platform.OpacityChanged{}.EventName():    decodeAs[platform.OpacityChanged],
	platform.CursorChanged{}.EventName():     decodeAs[platform.CursorChanged],
	platform.PropertyChanged{}.EventName():   decodeAs[platform.PropertyChanged],
	platform.ModalChanged{}.EventName():      decodeAs[platform.ModalChanged],
	platform.CaptureChanged{}.EventName():    decodeAs[platform.CaptureChanged],
	platform.FocusChanged{}.EventName():      decodeAs[platform.FocusChanged],
	platform.TopLevelCreated{}.EventName():   decodeAs[platform.TopLevelCreated],
	platform.DrawnStateChanged{}.EventName(): decodeAs[platform.DrawnStateChanged],
	platform.WindowReordered{}.EventName():   decodeAs[platform.WindowReordered],
	platform.TransientAdded{}.EventName():    decodeAs[platform.TransientAdded],
	platform.TransientRemoved{}.EventName():  decodeAs[platform.TransientRemoved],
	platform.Embedded{}.EventName():          decodeAs[platform.Embedded],
	platform.Unembedded{}.EventName():        decodeAs[platform.Unembedded],
	platform.DragDropDone{}.EventName():      decodeAs[platform.DragDropDone],
	platform.MoveLoopCompleted{}.EventName(): decodeAs[platform.MoveLoopCompleted],
}

// DecodeEvent turns an EVENT envelope back into its typed event.
// ConnectionLost is local to a client and is never accepted off the wire.
func DecodeEvent(env *Envelope) (platform.Event, error) {
	if env.Type != EnvelopeEvent {
		return nil, fmt.Errorf("not an event envelope: %s", env.Type)
	}
	decode, ok := eventDecoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
	return decode(env.Payload)
}

func decodeAs[T platform.Event](raw json.RawMessage) (platform.Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ev.EventName(), err)
	}
	return ev, nil
}
