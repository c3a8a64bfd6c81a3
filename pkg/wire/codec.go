package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Codec errors.
var (
	ErrDecode = errors.New("failed to decode CoAP message")
	ErrEncode = errors.New("failed to encode CoAP message")
)

// Decode parses one UDP datagram.
func Decode(ctx context.Context, data []byte) (*pool.Message, error) {
	msg := pool.NewMessage(ctx)
	if _, err := msg.UnmarshalWithDecoder(coder.DefaultCoder, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}

// Encode serializes a message as one UDP datagram.
func Encode(msg *pool.Message) ([]byte, error) {
	data, err := msg.MarshalWithEncoder(coder.DefaultCoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// ReadBody returns the whole payload, or nil when there is none.
func ReadBody(msg *pool.Message) ([]byte, error) {
	body := msg.Body()
	if body == nil {
		return nil, nil
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// RequestPath returns the URI path of a request as tree segments.
func RequestPath(msg *pool.Message) (model.Path, error) {
	p, err := msg.Options().Path()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPath, err)
	}
	return model.ParsePath(p)
}

// RequestQuery joins the URI-Query options with '&', or returns "" when
// there are none.
func RequestQuery(msg *pool.Message) string {
	queries, err := msg.Options().Queries()
	if err != nil {
		return ""
	}
	return strings.Join(queries, "&")
}

// RequestObserve returns what the Observe option of a request asks for.
func RequestObserve(msg *pool.Message) ObserveAction {
	obs, err := msg.Options().Observe()
	if err != nil {
		return ObserveNone
	}
	switch obs {
	case ObserveRegister:
		return ObserveStart
	case ObserveDeregister:
		return ObserveStop
	default:
		return ObserveNone
	}
}

// RequestAccept returns the Accept option.
func RequestAccept(msg *pool.Message) (model.ContentFormat, bool) {
	v, err := msg.Options().GetUint32(message.Accept)
	if err != nil {
		return 0, false
	}
	return model.ContentFormat(v), true
}

// RequestContentFormat returns the Content-Format option.
func RequestContentFormat(msg *pool.Message) (model.ContentFormat, bool) {
	cf, err := msg.Options().ContentFormat()
	if err != nil {
		return 0, false
	}
	return model.ContentFormat(cf), true
}

// NegotiateFormat picks the response format: Accept first, then the request
// Content-Format, then the node's own format.
func NegotiateFormat(msg *pool.Message, own model.ContentFormat) model.ContentFormat {
	if cf, ok := RequestAccept(msg); ok {
		return cf
	}
	if cf, ok := RequestContentFormat(msg); ok {
		return cf
	}
	return own
}
