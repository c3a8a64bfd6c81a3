package wire

import (
	"errors"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/report"
	"github.com/mash-protocol/lwm2m-go/pkg/tlv"
)

// CodeForError maps a tree, codec or attribute error to a response code.
func CodeForError(err error) codes.Code {
	switch {
	case err == nil:
		return codes.Changed
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrUnknownResource):
		return codes.NotFound
	case errors.Is(err, model.ErrOperationForbidden),
		errors.Is(err, model.ErrInvalidPath),
		errors.Is(err, model.ErrUnsupportedWrite),
		errors.Is(err, tlv.ErrNotObjectInstance),
		errors.Is(err, tlv.ErrTruncated),
		errors.Is(err, tlv.ErrEmptyPayload),
		errors.Is(err, tlv.ErrUnexpectedKind),
		errors.Is(err, report.ErrEmptyQuery),
		errors.Is(err, report.ErrUnknownAttribute),
		errors.Is(err, report.ErrInvalidValue),
		errors.Is(err, report.ErrNotAllowedOnTarget),
		errors.Is(err, report.ErrInvalidCombination):
		return codes.BadRequest
	case errors.Is(err, model.ErrNotExecutable):
		return codes.MethodNotAllowed
	default:
		return codes.InternalServerError
	}
}

// IsSuccess returns true for 2.xx codes.
func IsSuccess(c codes.Code) bool {
	return c>>5 == 2
}
