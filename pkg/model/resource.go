package model

import (
	"bytes"
	"strconv"
)

// ResourceType is the data type of a resource value.
type ResourceType uint8

const (
	TypeString ResourceType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeOpaque
	TypeTime
	TypeObjLink
)

// String returns the type name.
func (t ResourceType) String() string {
	names := []string{"string", "integer", "float", "boolean", "opaque", "time", "objlnk"}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// ParseResourceType returns the type for a name as printed by String.
func ParseResourceType(s string) (ResourceType, bool) {
	for t := TypeString; t <= TypeObjLink; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return TypeString, false
}

// IsNumeric returns true if values of this type feed the value thresholds.
func (t ResourceType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeBoolean, TypeTime:
		return true
	default:
		return false
	}
}

// parseNumeric reads a text-encoded numeric value.
func parseNumeric(t ResourceType, value []byte) (float64, bool) {
	if !t.IsNumeric() {
		return 0, false
	}
	s := string(value)
	if t == TypeBoolean {
		switch s {
		case "1", "true":
			return 1, true
		case "0", "false":
			return 0, true
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Resource is a named value of an object instance. In multi-instance mode it
// holds ResourceInstances instead of a value.
type Resource struct {
	base

	parent       *ObjectInstance
	resourceType string
	typ          ResourceType
	static       bool
	multiple     bool

	value     []byte
	instances []*ResourceInstance
	execute   func(args []byte)
}

func newResource(parent *ObjectInstance, name, resourceType string, typ ResourceType, static, multiple bool) *Resource {
	r := &Resource{
		parent:       parent,
		resourceType: resourceType,
		typ:          typ,
		static:       static,
		multiple:     multiple,
	}
	r.init(parent.env, r, KindResource, name, 0)
	if static {
		r.operation = OpGet
	} else {
		r.operation = OpGetPut
	}
	switch {
	case multiple:
		r.contentType = ContentFormatTLV
	case typ == TypeOpaque:
		r.contentType = ContentFormatOpaque
	default:
		r.contentType = ContentFormatText
	}
	return r
}

// Path returns object/instance/resource.
func (r *Resource) Path() Path {
	return r.parent.Path().Child(r.name)
}

// Parent returns the owning object instance.
func (r *Resource) Parent() *ObjectInstance {
	return r.parent
}

// ResourceType returns the semantic type string (e.g., "Temperature").
func (r *Resource) ResourceType() string {
	return r.resourceType
}

// Type returns the value data type.
func (r *Resource) Type() ResourceType {
	return r.typ
}

// IsStatic returns true if the value was fixed at creation.
func (r *Resource) IsStatic() bool {
	return r.static
}

// SupportsMultipleInstances returns true in multi-instance mode.
func (r *Resource) SupportsMultipleInstances() bool {
	return r.multiple
}

// Value returns a copy of the value. Multi-instance resources have none.
func (r *Resource) Value() []byte {
	return append([]byte(nil), r.value...)
}

// Float returns the value as a number for numeric types.
func (r *Resource) Float() (float64, bool) {
	return parseNumeric(r.typ, r.value)
}

// SetValue stores a new value and feeds the observation machinery. It
// returns true if the value changed. Static and multi-instance resources
// reject the call.
func (r *Resource) SetValue(value []byte) bool {
	if r.static || r.multiple {
		return false
	}
	changed := !bytes.Equal(r.value, value)
	r.value = append([]byte(nil), value...)

	if r.reportHandler != nil {
		if f, ok := parseNumeric(r.typ, r.value); ok {
			r.reportHandler.SetValue(f)
		} else if changed {
			r.reportHandler.ValueChanged()
		}
	}
	if changed && r.level.Has(LevelInstance|LevelObject) {
		r.parent.notificationUpdate(r.level)
	}
	return changed
}

// SetUnderObservation seeds the report baseline with the current value when
// observation starts.
func (r *Resource) SetUnderObservation(observed bool, handler ObservationHandler) {
	r.base.SetUnderObservation(observed, handler)
	if observed && r.reportHandler != nil {
		if f, ok := r.Float(); ok {
			r.reportHandler.Seed(f)
		}
	}
}

// SetExecuteFunction sets the callback run by POST.
func (r *Resource) SetExecuteFunction(fn func(args []byte)) {
	r.execute = fn
}

// Execute runs the execute callback.
func (r *Resource) Execute(args []byte) error {
	if r.execute == nil {
		return ErrNotExecutable
	}
	r.execute(args)
	return nil
}

// Instances returns the resource instances in insertion order.
func (r *Resource) Instances() []*ResourceInstance {
	out := make([]*ResourceInstance, len(r.instances))
	copy(out, r.instances)
	return out
}

// InstanceCount returns the number of resource instances.
func (r *Resource) InstanceCount() int {
	return len(r.instances)
}

// ResourceInstance returns the instance with the given id, or nil.
func (r *Resource) ResourceInstance(id uint16) *ResourceInstance {
	for _, ri := range r.instances {
		if ri.instanceID == id {
			return ri
		}
	}
	return nil
}

func (r *Resource) addInstance(ri *ResourceInstance) {
	r.instances = append(r.instances, ri)
}

func (r *Resource) removeInstance(id uint16) *ResourceInstance {
	for i, ri := range r.instances {
		if ri.instanceID == id {
			r.instances = append(r.instances[:i], r.instances[i+1:]...)
			return ri
		}
	}
	return nil
}

// instanceValueChanged is called by a resource instance after its value changed.
func (r *Resource) instanceValueChanged() {
	if r.reportHandler != nil {
		r.reportHandler.ValueChanged()
	}
	if r.level.Has(LevelInstance | LevelObject) {
		r.parent.notificationUpdate(r.level)
	}
}

func (r *Resource) close() {
	for _, ri := range r.instances {
		ri.closeHandler()
	}
	r.instances = nil
	r.closeHandler()
}

// ResourceInstance is one indexed value of a multi-instance resource. It
// shares the name of its resource.
type ResourceInstance struct {
	base

	parent       *Resource
	resourceType string
	typ          ResourceType
	static       bool
	value        []byte
}

func newResourceInstance(parent *Resource, resourceType string, typ ResourceType, static bool, id uint16) *ResourceInstance {
	ri := &ResourceInstance{
		parent:       parent,
		resourceType: resourceType,
		typ:          typ,
		static:       static,
	}
	ri.init(parent.env, ri, KindResourceInstance, parent.name, id)
	if static {
		ri.operation = OpGet
	} else {
		ri.operation = OpGetPut
	}
	if typ == TypeOpaque {
		ri.contentType = ContentFormatOpaque
	} else {
		ri.contentType = ContentFormatText
	}
	return ri
}

// Path returns object/instance/resource/resource-instance.
func (ri *ResourceInstance) Path() Path {
	return ri.parent.Path().Child(strconv.Itoa(int(ri.instanceID)))
}

// Parent returns the owning resource.
func (ri *ResourceInstance) Parent() *Resource {
	return ri.parent
}

// ResourceType returns the semantic type string.
func (ri *ResourceInstance) ResourceType() string {
	return ri.resourceType
}

// Type returns the value data type.
func (ri *ResourceInstance) Type() ResourceType {
	return ri.typ
}

// IsStatic returns true if the value was fixed at creation.
func (ri *ResourceInstance) IsStatic() bool {
	return ri.static
}

// Value returns a copy of the value.
func (ri *ResourceInstance) Value() []byte {
	return append([]byte(nil), ri.value...)
}

// Float returns the value as a number for numeric types.
func (ri *ResourceInstance) Float() (float64, bool) {
	return parseNumeric(ri.typ, ri.value)
}

// SetValue stores a new value. It returns true if the value changed.
func (ri *ResourceInstance) SetValue(value []byte) bool {
	if ri.static {
		return false
	}
	changed := !bytes.Equal(ri.value, value)
	ri.value = append([]byte(nil), value...)

	if ri.reportHandler != nil {
		if f, ok := parseNumeric(ri.typ, ri.value); ok {
			ri.reportHandler.SetValue(f)
		} else if changed {
			ri.reportHandler.ValueChanged()
		}
	}
	if changed {
		ri.parent.instanceValueChanged()
	}
	return changed
}
