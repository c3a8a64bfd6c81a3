package wire

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync/atomic"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// ResponseBuilder builds the single response to a request.
type ResponseBuilder interface {
	BuildResponse(req *pool.Message, code codes.Code) *pool.Message
}

// CoAPBuilder builds responses and notifications for one CoAP endpoint.
type CoAPBuilder struct {
	mid atomic.Uint32
}

// NewCoAPBuilder creates a builder with a random initial message id.
func NewCoAPBuilder() *CoAPBuilder {
	b := &CoAPBuilder{}
	b.mid.Store(rand.Uint32N(0x10000))
	return b
}

// NextMessageID returns a fresh 16-bit message id.
func (b *CoAPBuilder) NextMessageID() int32 {
	return int32(uint16(b.mid.Add(1)))
}

// BuildResponse creates a response echoing the request token. A confirmable
// request gets a piggybacked acknowledgement with the same message id; any
// other request gets a non-confirmable response with a fresh id.
func (b *CoAPBuilder) BuildResponse(req *pool.Message, code codes.Code) *pool.Message {
	resp := pool.NewMessage(req.Context())
	resp.SetCode(code)
	resp.SetToken(req.Token())
	if req.Type() == message.Confirmable {
		resp.SetType(message.Acknowledgement)
		resp.SetMessageID(req.MessageID())
	} else {
		resp.SetType(message.NonConfirmable)
		resp.SetMessageID(b.NextMessageID())
	}
	return resp
}

// BuildNotification creates an observe notification.
func (b *CoAPBuilder) BuildNotification(ctx context.Context, token []byte, seq uint16, cf model.ContentFormat, payload []byte, confirmable bool) *pool.Message {
	msg := pool.NewMessage(ctx)
	msg.SetCode(codes.Content)
	msg.SetToken(message.Token(token))
	msg.SetMessageID(b.NextMessageID())
	if confirmable {
		msg.SetType(message.Confirmable)
	} else {
		msg.SetType(message.NonConfirmable)
	}
	msg.SetObserve(uint32(seq))
	SetPayload(msg, cf, payload)
	return msg
}

// BuildPing creates a CoAP ping: an empty confirmable message.
func (b *CoAPBuilder) BuildPing(ctx context.Context) *pool.Message {
	msg := pool.NewMessage(ctx)
	msg.SetType(message.Confirmable)
	msg.SetCode(codes.Empty)
	msg.SetMessageID(b.NextMessageID())
	return msg
}

// BuildReset creates an empty reset rejecting the message with id mid.
func BuildReset(ctx context.Context, mid int32) *pool.Message {
	msg := pool.NewMessage(ctx)
	msg.SetType(message.Reset)
	msg.SetCode(codes.Empty)
	msg.SetMessageID(mid)
	return msg
}

// IsPong reports whether msg answers a ping.
func IsPong(msg *pool.Message) bool {
	return msg.Type() == message.Reset && msg.Code() == codes.Empty
}

// SetPayload attaches a body with its content format. An empty payload
// leaves the message without body and format.
func SetPayload(msg *pool.Message, cf model.ContentFormat, payload []byte) {
	if len(payload) == 0 {
		return
	}
	msg.SetContentFormat(message.MediaType(cf))
	msg.SetBody(bytes.NewReader(payload))
}

var _ ResponseBuilder = (*CoAPBuilder)(nil)
