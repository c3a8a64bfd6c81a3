package log

import (
	"strings"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
)

// MaxFrameData is the number of datagram bytes kept in a FrameEvent.
const MaxFrameData = 512

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the server connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the client endpoint name.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the server address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // CoAP layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/observation state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the secure datagram layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the CoAP layer (decoded header and options).
	LayerWire Layer = 1
	// LayerService is the device service layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/notification).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw datagram at the transport layer.
type FrameEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw datagram (truncated to MaxFrameData).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies data into a FrameEvent.
func NewFrameEvent(data []byte) *FrameEvent {
	f := &FrameEvent{Size: len(data)}
	n := len(data)
	if n > MaxFrameData {
		n = MaxFrameData
		f.Truncated = true
	}
	f.Data = append([]byte(nil), data[:n]...)
	return f
}

// MessageEvent captures a decoded CoAP message.
type MessageEvent struct {
	// Type distinguishes request/response/notification.
	Type MessageType `cbor:"1,keyasint"`

	// MessageID is the CoAP message id.
	MessageID uint16 `cbor:"2,keyasint"`

	// CoAPType is the CoAP header type (CON, NON, ACK, RST).
	CoAPType uint8 `cbor:"3,keyasint"`

	// Code is the CoAP method or response code.
	Code uint8 `cbor:"4,keyasint"`

	// Token correlates requests, responses and notifications.
	Token []byte `cbor:"5,keyasint,omitempty"`

	// Path is the URI path of a request.
	Path string `cbor:"6,keyasint,omitempty"`

	// Query is the joined URI query of a request.
	Query string `cbor:"7,keyasint,omitempty"`

	// ContentFormat of the payload, if any.
	ContentFormat *uint16 `cbor:"8,keyasint,omitempty"`

	// Observe option value, if present.
	Observe *uint32 `cbor:"9,keyasint,omitempty"`

	// PayloadSize is the body length in bytes.
	PayloadSize int `cbor:"10,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response send (response only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"11,keyasint,omitempty"`
}

// CodeString returns the code in dotted class.detail form.
func (m *MessageEvent) CodeString() string {
	return codes.Code(m.Code).String()
}

// NewMessageEvent extracts the logged fields of msg.
func NewMessageEvent(msg *pool.Message, typ MessageType) *MessageEvent {
	m := &MessageEvent{
		Type:      typ,
		MessageID: uint16(msg.MessageID()),
		CoAPType:  uint8(msg.Type()),
		Code:      uint8(msg.Code()),
		Token:     append([]byte(nil), msg.Token()...),
	}
	if p, err := msg.Options().Path(); err == nil && p != "" {
		m.Path = p
	}
	if q, err := msg.Options().Queries(); err == nil {
		m.Query = strings.Join(q, "&")
	}
	if cf, err := msg.Options().ContentFormat(); err == nil {
		v := uint16(cf)
		m.ContentFormat = &v
	}
	if obs, err := msg.Options().Observe(); err == nil {
		m.Observe = &obs
	}
	if size, err := msg.BodySize(); err == nil {
		m.PayloadSize = int(size)
	}
	return m
}

// MessageType distinguishes request/response/notification.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification indicates a notification message.
	MessageTypeNotification MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and observation lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityHandshake indicates a DTLS handshake state change.
	StateEntityHandshake StateEntity = 1
	// StateEntityObservation indicates an observation started or stopped.
	StateEntityObservation StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityHandshake:
		return "HANDSHAKE"
	case StateEntityObservation:
		return "OBSERVATION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error or status code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
