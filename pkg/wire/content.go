package wire

import (
	"github.com/plgd-dev/go-coap/v3/message"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// LwM2M content formats.
const (
	MediaTypeText      = message.MediaType(model.ContentFormatText)
	MediaTypeOpaque    = message.MediaType(model.ContentFormatOpaque)
	MediaTypeSenMLCBOR = message.MediaType(model.ContentFormatSenMLCBOR)
	MediaTypeTLV       = message.MediaType(model.ContentFormatTLV)
	MediaTypeJSON      = message.MediaType(model.ContentFormatJSON)
)

// Observe option values in requests.
const (
	ObserveRegister   uint32 = 0
	ObserveDeregister uint32 = 1
)

// ObserveAction is what an Observe option asks for.
type ObserveAction uint8

const (
	ObserveNone ObserveAction = iota
	ObserveStart
	ObserveStop
)

// String returns the action name.
func (a ObserveAction) String() string {
	switch a {
	case ObserveNone:
		return "NONE"
	case ObserveStart:
		return "START"
	case ObserveStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}
