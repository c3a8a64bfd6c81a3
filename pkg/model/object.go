package model

// Object is a kind of managed entity. It owns object instances with unique ids.
type Object struct {
	base

	device    *Device
	instances []*ObjectInstance
}

// NewObject creates a standalone object with its own tree configuration.
// It returns nil for an empty name.
func NewObject(name string, config Config) *Object {
	if name == "" {
		return nil
	}
	return newObject(newEnv(config), nil, name)
}

func newObject(e *env, device *Device, name string) *Object {
	o := &Object{device: device}
	o.init(e, o, KindObject, name, 0)
	o.operation = OpGet | OpPost
	o.SetObservable(true)
	return o
}

// Path returns the single-segment object path.
func (o *Object) Path() Path {
	return Path{o.name}
}

// SetObservationHandler sets the tree-wide observation handler.
func (o *Object) SetObservationHandler(h ObservationHandler) {
	o.env.handler = h
}

// SetLinker sets the tree-wide linker.
func (o *Object) SetLinker(l Linker) {
	o.env.linker = l
}

// CreateObjectInstance creates an instance with the lowest free id.
func (o *Object) CreateObjectInstance() *ObjectInstance {
	var id uint16
	for o.ObjectInstance(id) != nil {
		if id == 0xFFFF {
			return nil
		}
		id++
	}
	return o.CreateObjectInstanceWithID(id)
}

// CreateObjectInstanceWithID creates an instance with a given id. It returns
// nil if the id is taken.
func (o *Object) CreateObjectInstanceWithID(id uint16) *ObjectInstance {
	if o.ObjectInstance(id) != nil {
		return nil
	}
	oi := newObjectInstance(o, id)
	oi.level = o.level
	o.instances = append(o.instances, oi)
	o.structureChanged()
	return oi
}

// RemoveObjectInstance removes an instance and all its resources. It returns
// false if the id does not exist.
func (o *Object) RemoveObjectInstance(id uint16) bool {
	for i, oi := range o.instances {
		if oi.instanceID != id {
			continue
		}
		path := oi.Path()
		o.env.removePath(path)
		oi.close()
		o.instances = append(o.instances[:i], o.instances[i+1:]...)
		o.env.debug("object instance removed", "path", path.String())
		o.structureChanged()
		return true
	}
	return false
}

// ObjectInstance returns the instance with the given id, or nil.
func (o *Object) ObjectInstance(id uint16) *ObjectInstance {
	for _, oi := range o.instances {
		if oi.instanceID == id {
			return oi
		}
	}
	return nil
}

// Instances returns the instances in insertion order.
func (o *Object) Instances() []*ObjectInstance {
	out := make([]*ObjectInstance, len(o.instances))
	copy(out, o.instances)
	return out
}

// InstanceCount returns the number of instances.
func (o *Object) InstanceCount() int {
	return len(o.instances)
}

// AddObservationLevel sets the level on the object and every instance.
func (o *Object) AddObservationLevel(level ObservationLevel) {
	o.base.AddObservationLevel(level)
	for _, oi := range o.instances {
		oi.AddObservationLevel(level)
	}
}

// RemoveObservationLevel clears the level on the object and every instance.
func (o *Object) RemoveObservationLevel(level ObservationLevel) {
	o.base.RemoveObservationLevel(level)
	for _, oi := range o.instances {
		oi.RemoveObservationLevel(level)
	}
}

func (o *Object) notificationUpdate() {
	if o.reportHandler != nil {
		o.reportHandler.TriggerObjectNotification()
	}
}

func (o *Object) structureChanged() {
	if o.level.Has(LevelObject) {
		o.notificationUpdate()
	}
}

func (o *Object) close() {
	for _, oi := range o.instances {
		oi.close()
	}
	o.instances = nil
	o.closeHandler()
}
