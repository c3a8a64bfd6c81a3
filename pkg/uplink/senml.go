package uplink

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/farshidtz/senml/v2"
	"github.com/farshidtz/senml/v2/codec"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// ErrEmptyPack is returned when an instance has no resource with a value.
var ErrEmptyPack = errors.New("uplink: no values to publish")

// BuildPack builds a SenML pack from the resources of oi. The base name is
// the instance path, so record names are resource ids, with the resource
// instance id appended for multi-instance resources. Resources without a
// value are left out.
func BuildPack(oi *model.ObjectInstance, at time.Time) (senml.Pack, error) {
	var pack senml.Pack
	for _, r := range oi.Resources() {
		if !r.Operation().Allows(model.OpGet) {
			continue
		}
		if r.SupportsMultipleInstances() {
			for _, ri := range r.Instances() {
				name := r.Name() + "/" + strconv.Itoa(int(ri.InstanceID()))
				if rec, ok := record(name, ri.Type(), ri.Value()); ok {
					pack = append(pack, rec)
				}
			}
			continue
		}
		if rec, ok := record(r.Name(), r.Type(), r.Value()); ok {
			pack = append(pack, rec)
		}
	}
	if len(pack) == 0 {
		return nil, ErrEmptyPack
	}

	pack[0].BaseName = oi.Path().String() + "/"
	pack[0].BaseTime = float64(at.UnixMilli()) / 1000

	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("uplink: invalid pack: %w", err)
	}
	pack.Normalize()
	return pack, nil
}

// EncodePack encodes pack as SenML CBOR.
func EncodePack(pack senml.Pack) ([]byte, error) {
	data, err := codec.EncodeCBOR(pack)
	if err != nil {
		return nil, fmt.Errorf("uplink: encode pack: %w", err)
	}
	return data, nil
}

func record(name string, typ model.ResourceType, value []byte) (senml.Record, bool) {
	if len(value) == 0 {
		return senml.Record{}, false
	}
	rec := senml.Record{Name: name}
	switch typ {
	case model.TypeBoolean:
		b := string(value) == "1" || string(value) == "true"
		rec.BoolValue = &b
	case model.TypeInteger, model.TypeFloat, model.TypeTime:
		f, err := strconv.ParseFloat(string(value), 64)
		if err != nil {
			return senml.Record{}, false
		}
		rec.Value = &f
	case model.TypeOpaque:
		rec.DataValue = base64.RawURLEncoding.EncodeToString(value)
	default:
		rec.StringValue = string(value)
	}
	return rec, true
}
