package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV errors.
var (
	ErrEmptyPayload      = errors.New("empty TLV payload")
	ErrTruncated         = errors.New("truncated TLV entry")
	ErrValueTooLong      = errors.New("TLV value exceeds 24-bit length")
	ErrNotObjectInstance = errors.New("payload is not an object instance")
	ErrUnexpectedKind    = errors.New("unexpected TLV entry kind")
)

// Kind is the identifier type carried in bits 7-6 of the type byte.
type Kind uint8

const (
	// KindObjectInstance marks an object instance container.
	KindObjectInstance Kind = 0x00

	// KindResourceInstance marks one instance of a multiple resource.
	KindResourceInstance Kind = 0x40

	// KindMultipleResource marks a container of resource instances.
	KindMultipleResource Kind = 0x80

	// KindResourceWithValue marks a single-instance resource.
	KindResourceWithValue Kind = 0xC0
)

const (
	kindMask      = 0xC0
	idWide        = 0x20
	lengthShift   = 3
	lengthMask    = 0x18
	inlineLenMask = 0x07

	maxInlineLength = 7
	maxLength       = 0xFFFFFF
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObjectInstance:
		return "OBJECT_INSTANCE"
	case KindResourceInstance:
		return "RESOURCE_INSTANCE"
	case KindMultipleResource:
		return "MULTIPLE_RESOURCE"
	case KindResourceWithValue:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// IsContainer reports whether entries of this kind nest other entries.
func (k Kind) IsContainer() bool {
	return k == KindObjectInstance || k == KindMultipleResource
}

// Record is one decoded TLV entry.
// Containers carry Children and leave Value nil; leaves carry Value.
type Record struct {
	Kind     Kind
	ID       uint16
	Value    []byte
	Children []Record
}

// IsObjectInstance reports whether the payload starts with an object instance entry.
func IsObjectInstance(payload []byte) bool {
	return len(payload) > 0 && Kind(payload[0]&kindMask) == KindObjectInstance
}

// Encode serializes the records in order.
func Encode(records []Record) ([]byte, error) {
	var out []byte
	for i := range records {
		b, err := encodeRecord(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeRecord(r *Record) ([]byte, error) {
	value := r.Value
	if r.Kind.IsContainer() {
		var err error
		value, err = Encode(r.Children)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", r.Kind, r.ID, err)
		}
	}
	if len(value) > maxLength {
		return nil, ErrValueTooLong
	}

	header := make([]byte, 1, 6)
	header[0] = byte(r.Kind)

	if r.ID > 0xFF {
		header[0] |= idWide
		header = binary.BigEndian.AppendUint16(header, r.ID)
	} else {
		header = append(header, byte(r.ID))
	}

	n := len(value)
	switch {
	case n <= maxInlineLength:
		header[0] |= byte(n)
	case n <= 0xFF:
		header[0] |= 1 << lengthShift
		header = append(header, byte(n))
	case n <= 0xFFFF:
		header[0] |= 2 << lengthShift
		header = binary.BigEndian.AppendUint16(header, uint16(n))
	default:
		header[0] |= 3 << lengthShift
		header = append(header, byte(n>>16), byte(n>>8), byte(n))
	}

	return append(header, value...), nil
}

// Decode parses a payload into records, descending into containers.
func Decode(payload []byte) ([]Record, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return decodeAll(payload)
}

func decodeAll(data []byte) ([]Record, error) {
	var records []Record
	for len(data) > 0 {
		r, n, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		data = data[n:]
	}
	return records, nil
}

func decodeRecord(data []byte) (Record, int, error) {
	typ := data[0]
	r := Record{Kind: Kind(typ & kindMask)}
	pos := 1

	if typ&idWide != 0 {
		if len(data) < pos+2 {
			return r, 0, ErrTruncated
		}
		r.ID = binary.BigEndian.Uint16(data[pos:])
		pos += 2
	} else {
		if len(data) < pos+1 {
			return r, 0, ErrTruncated
		}
		r.ID = uint16(data[pos])
		pos++
	}

	var length int
	lenWidth := int(typ&lengthMask) >> lengthShift
	if lenWidth == 0 {
		length = int(typ & inlineLenMask)
	} else {
		if len(data) < pos+lenWidth {
			return r, 0, ErrTruncated
		}
		for i := 0; i < lenWidth; i++ {
			length = length<<8 | int(data[pos+i])
		}
		pos += lenWidth
	}

	if len(data) < pos+length {
		return r, 0, ErrTruncated
	}
	value := data[pos : pos+length]
	pos += length

	if r.Kind.IsContainer() {
		children, err := decodeAll(value)
		if err != nil {
			return r, 0, fmt.Errorf("%s %d: %w", r.Kind, r.ID, err)
		}
		r.Children = children
	} else {
		r.Value = append([]byte(nil), value...)
	}

	return r, pos, nil
}
