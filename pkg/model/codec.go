package model

import (
	"errors"
	"fmt"

	"github.com/mash-protocol/lwm2m-go/pkg/tlv"
)

// Deserialization errors.
var (
	ErrUnknownResource  = errors.New("unknown resource")
	ErrUnsupportedWrite = errors.New("unsupported write")
)

// Serialize encodes resources as bare TLV entries in order. Multi-instance
// resources become a multiple-resource entry holding their instances.
// Reads answer with this form while DeserializeResources only takes the
// object-instance form of SerializeObjectInstance, so a write round trip
// must go through the latter.
func Serialize(resources []*Resource) ([]byte, error) {
	records, err := resourceRecords(resources)
	if err != nil {
		return nil, err
	}
	return tlv.Encode(records)
}

// SerializeObjectInstance encodes the resources of an instance wrapped in an
// object-instance entry.
func SerializeObjectInstance(oi *ObjectInstance) ([]byte, error) {
	rec, err := instanceRecord(oi)
	if err != nil {
		return nil, err
	}
	return tlv.Encode([]tlv.Record{rec})
}

// SerializeObject encodes every instance of an object, each in its own
// object-instance entry.
func SerializeObject(o *Object) ([]byte, error) {
	records := make([]tlv.Record, 0, len(o.instances))
	for _, oi := range o.instances {
		rec, err := instanceRecord(oi)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return tlv.Encode(records)
}

// SerializeResource encodes a single resource entry.
func SerializeResource(r *Resource) ([]byte, error) {
	return Serialize([]*Resource{r})
}

// SerializeResourceInstance encodes a single resource-instance entry.
func SerializeResourceInstance(ri *ResourceInstance) ([]byte, error) {
	return tlv.Encode([]tlv.Record{{
		Kind:  tlv.KindResourceInstance,
		ID:    ri.InstanceID(),
		Value: ri.Value(),
	}})
}

func instanceRecord(oi *ObjectInstance) (tlv.Record, error) {
	children, err := resourceRecords(oi.resources)
	if err != nil {
		return tlv.Record{}, err
	}
	return tlv.Record{
		Kind:     tlv.KindObjectInstance,
		ID:       oi.instanceID,
		Children: children,
	}, nil
}

func resourceRecords(resources []*Resource) ([]tlv.Record, error) {
	records := make([]tlv.Record, 0, len(resources))
	for _, r := range resources {
		if r.nameID == UnnamedID {
			return nil, fmt.Errorf("%w: %q", ErrUnnamedNode, r.name)
		}
		if !r.multiple {
			records = append(records, tlv.Record{
				Kind:  tlv.KindResourceWithValue,
				ID:    uint16(r.nameID),
				Value: r.value,
			})
			continue
		}
		children := make([]tlv.Record, 0, len(r.instances))
		for _, ri := range r.instances {
			children = append(children, tlv.Record{
				Kind:  tlv.KindResourceInstance,
				ID:    ri.instanceID,
				Value: ri.value,
			})
		}
		records = append(records, tlv.Record{
			Kind:     tlv.KindMultipleResource,
			ID:       uint16(r.nameID),
			Children: children,
		})
	}
	return records, nil
}

// DeserializeResources writes an object-instance payload into resources.
// It fails with tlv.ErrNotObjectInstance when the payload does not start
// with an object-instance entry. The payload is fully decoded and checked
// before any value changes; a failure leaves every resource untouched.
// It returns the resources whose value changed.
func DeserializeResources(payload []byte, resources []*Resource) ([]*Resource, error) {
	if !tlv.IsObjectInstance(payload) {
		return nil, tlv.ErrNotObjectInstance
	}
	records, err := tlv.Decode(payload)
	if err != nil {
		return nil, err
	}

	var entries []tlv.Record
	for _, rec := range records {
		if rec.Kind != tlv.KindObjectInstance {
			return nil, fmt.Errorf("%w: %s after object instance", tlv.ErrUnexpectedKind, rec.Kind)
		}
		entries = append(entries, rec.Children...)
	}
	return applyRecords(entries, resources)
}

// DeserializeResource writes a resource payload (a single or multiple
// resource entry) into r.
func DeserializeResource(payload []byte, r *Resource) ([]*Resource, error) {
	records, err := tlv.Decode(payload)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Kind == tlv.KindObjectInstance || int(rec.ID) != r.nameID {
			return nil, fmt.Errorf("%w: entry %s %d", ErrUnknownResource, rec.Kind, rec.ID)
		}
	}
	return applyRecords(records, []*Resource{r})
}

type write struct {
	r      *Resource
	rec    tlv.Record
	create []tlv.Record
}

func applyRecords(entries []tlv.Record, resources []*Resource) ([]*Resource, error) {
	byID := make(map[int]*Resource, len(resources))
	for _, r := range resources {
		byID[r.nameID] = r
	}

	writes := make([]write, 0, len(entries))
	for _, rec := range entries {
		r, ok := byID[int(rec.ID)]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownResource, rec.ID)
		}
		if !r.operation.Allows(OpPut) || r.static {
			return nil, fmt.Errorf("%w: resource %s", ErrOperationForbidden, r.Path())
		}

		switch rec.Kind {
		case tlv.KindResourceWithValue:
			if r.multiple {
				return nil, fmt.Errorf("%w: value for multi-instance resource %s", ErrUnsupportedWrite, r.Path())
			}
			writes = append(writes, write{r: r, rec: rec})
		case tlv.KindMultipleResource:
			if !r.multiple {
				return nil, fmt.Errorf("%w: instances for single-instance resource %s", ErrUnsupportedWrite, r.Path())
			}
			w := write{r: r, rec: rec}
			for _, child := range rec.Children {
				if child.Kind != tlv.KindResourceInstance {
					return nil, fmt.Errorf("%w: %s in multiple resource", tlv.ErrUnexpectedKind, child.Kind)
				}
				if r.ResourceInstance(child.ID) == nil {
					w.create = append(w.create, child)
				}
			}
			writes = append(writes, w)
		default:
			return nil, fmt.Errorf("%w: %s", tlv.ErrUnexpectedKind, rec.Kind)
		}
	}

	var changed []*Resource
	for _, w := range writes {
		if !w.r.multiple {
			if w.r.SetValue(w.rec.Value) {
				changed = append(changed, w.r)
			}
			continue
		}
		for _, c := range w.create {
			w.r.parent.CreateDynamicResourceInstance(w.r.name, w.r.resourceType, w.r.typ, w.r.observable, c.ID)
		}
		touched := len(w.create) > 0
		for _, child := range w.rec.Children {
			if ri := w.r.ResourceInstance(child.ID); ri != nil && ri.SetValue(child.Value) {
				touched = true
			}
		}
		if touched {
			changed = append(changed, w.r)
		}
	}
	return changed, nil
}
