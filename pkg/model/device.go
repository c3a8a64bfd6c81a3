package model

import (
	"fmt"
	"strconv"
)

// Device is the root of the tree. It owns objects with unique names and
// carries the tree-wide configuration.
type Device struct {
	endpoint string
	env      *env
	objects  []*Object
}

// NewDevice creates an empty device tree.
func NewDevice(endpoint string, config Config) *Device {
	return &Device{
		endpoint: endpoint,
		env:      newEnv(config),
	}
}

// Endpoint returns the client endpoint name.
func (d *Device) Endpoint() string {
	return d.endpoint
}

// SetObservationHandler sets the handler that sends notifications and
// receives change callbacks for every node.
func (d *Device) SetObservationHandler(h ObservationHandler) {
	d.env.handler = h
}

// SetLinker sets the linker told about removed paths.
func (d *Device) SetLinker(l Linker) {
	d.env.linker = l
}

// CreateObject creates an object. It returns nil for an empty name and the
// existing object when the name is already taken.
func (d *Device) CreateObject(name string) *Object {
	if name == "" {
		return nil
	}
	if o := d.Object(name); o != nil {
		return o
	}
	o := newObject(d.env, d, name)
	d.objects = append(d.objects, o)
	return o
}

// RemoveObject removes an object and its whole subtree.
func (d *Device) RemoveObject(name string) bool {
	for i, o := range d.objects {
		if o.name != name {
			continue
		}
		d.env.removePath(o.Path())
		o.close()
		d.objects = append(d.objects[:i], d.objects[i+1:]...)
		return true
	}
	return false
}

// Object returns the named object, or nil.
func (d *Device) Object(name string) *Object {
	for _, o := range d.objects {
		if o.name == name {
			return o
		}
	}
	return nil
}

// Objects returns the objects in insertion order.
func (d *Device) Objects() []*Object {
	out := make([]*Object, len(d.objects))
	copy(out, d.objects)
	return out
}

// Lookup resolves a path to a node.
func (d *Device) Lookup(path Path) (Node, error) {
	if len(path) == 0 || len(path) > 4 {
		return nil, ErrInvalidPath
	}

	o := d.Object(path[0])
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if len(path) == 1 {
		return o, nil
	}

	id, err := parseInstanceID(path[1])
	if err != nil {
		return nil, err
	}
	oi := o.ObjectInstance(id)
	if oi == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if len(path) == 2 {
		return oi, nil
	}

	r := oi.Resource(path[2])
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if len(path) == 3 {
		return r, nil
	}

	id, err = parseInstanceID(path[3])
	if err != nil {
		return nil, err
	}
	ri := r.ResourceInstance(id)
	if ri == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return ri, nil
}

// Resources calls fn for every resource in tree order.
func (d *Device) Resources(fn func(r *Resource)) {
	for _, o := range d.objects {
		for _, oi := range o.instances {
			for _, r := range oi.resources {
				fn(r)
			}
		}
	}
}

// Close tears down the tree, stopping every report handler.
func (d *Device) Close() {
	for _, o := range d.objects {
		o.close()
	}
}

func parseInstanceID(s string) (uint16, error) {
	id, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: instance id %q", ErrInvalidPath, s)
	}
	return uint16(id), nil
}
