package model

import (
	"strconv"
)

// ObjectInstance is one concrete entity of an Object. It owns an ordered list
// of resources with unique names.
type ObjectInstance struct {
	base

	parent    *Object
	resources []*Resource
}

func newObjectInstance(parent *Object, id uint16) *ObjectInstance {
	oi := &ObjectInstance{parent: parent}
	oi.init(parent.env, oi, KindObjectInstance, parent.name, id)
	oi.operation = OpGetPut
	oi.SetObservable(true)
	return oi
}

// Path returns object/instance.
func (oi *ObjectInstance) Path() Path {
	return oi.parent.Path().Child(strconv.Itoa(int(oi.instanceID)))
}

// Parent returns the owning object.
func (oi *ObjectInstance) Parent() *Object {
	return oi.parent
}

// CreateStaticResource creates a GET-only resource with a fixed value.
// It returns nil for an empty name and the existing resource when the name
// is already taken. A multi-instance static resource holds no value of its
// own; its instances carry the values.
func (oi *ObjectInstance) CreateStaticResource(name, resourceType string, typ ResourceType, value []byte, multiple bool) *Resource {
	if name == "" {
		return nil
	}
	if r := oi.Resource(name); r != nil {
		return r
	}
	r := newResource(oi, name, resourceType, typ, true, multiple)
	if !multiple {
		r.value = append([]byte(nil), value...)
	}
	oi.addResource(r)
	return r
}

// CreateDynamicResource creates a GET|PUT resource without a value.
// It returns nil for an empty name and the existing resource when the name
// is already taken.
func (oi *ObjectInstance) CreateDynamicResource(name, resourceType string, typ ResourceType, observable, multiple bool) *Resource {
	if name == "" {
		return nil
	}
	if r := oi.Resource(name); r != nil {
		return r
	}
	r := newResource(oi, name, resourceType, typ, false, multiple)
	r.SetObservable(observable)
	oi.addResource(r)
	return r
}

// CreateStaticResourceInstance creates a GET-only, non-observable instance
// of the named resource. A missing resource is created in multi-instance
// mode. It returns nil for an empty name, when the resource exists in
// single-instance mode, or when the instance id is taken.
func (oi *ObjectInstance) CreateStaticResourceInstance(name, resourceType string, typ ResourceType, value []byte, instanceID uint16) *ResourceInstance {
	r := oi.resourceForInstance(name, resourceType, typ, true, false, instanceID)
	if r == nil {
		return nil
	}
	ri := newResourceInstance(r, resourceType, typ, true, instanceID)
	ri.value = append([]byte(nil), value...)
	oi.addResourceInstance(r, ri)
	return ri
}

// CreateDynamicResourceInstance creates a GET|PUT instance of the named
// resource under the same rules as CreateStaticResourceInstance.
func (oi *ObjectInstance) CreateDynamicResourceInstance(name, resourceType string, typ ResourceType, observable bool, instanceID uint16) *ResourceInstance {
	r := oi.resourceForInstance(name, resourceType, typ, false, observable, instanceID)
	if r == nil {
		return nil
	}
	ri := newResourceInstance(r, resourceType, typ, false, instanceID)
	ri.SetObservable(observable)
	oi.addResourceInstance(r, ri)
	return ri
}

func (oi *ObjectInstance) resourceForInstance(name, resourceType string, typ ResourceType, static, observable bool, instanceID uint16) *Resource {
	if name == "" {
		return nil
	}
	r := oi.Resource(name)
	if r == nil {
		r = newResource(oi, name, resourceType, typ, static, true)
		r.SetObservable(observable)
		oi.appendResource(r)
		return r
	}
	if !r.multiple {
		oi.env.debug("resource instance rejected: single-instance resource", "path", r.Path().String())
		return nil
	}
	if r.ResourceInstance(instanceID) != nil {
		oi.env.debug("resource instance rejected: duplicate id", "path", r.Path().String(), "id", instanceID)
		return nil
	}
	return r
}

func (oi *ObjectInstance) addResource(r *Resource) {
	oi.appendResource(r)
	oi.structureChanged()
}

func (oi *ObjectInstance) appendResource(r *Resource) {
	r.level = oi.level
	oi.resources = append(oi.resources, r)
}

func (oi *ObjectInstance) addResourceInstance(r *Resource, ri *ResourceInstance) {
	ri.level = r.level
	r.addInstance(ri)
	oi.structureChanged()
}

// RemoveResource removes the named resource and all its instances. It
// returns false if no resource has that name.
func (oi *ObjectInstance) RemoveResource(name string) bool {
	for i, r := range oi.resources {
		if r.name != name {
			continue
		}
		path := r.Path()
		oi.env.removePath(path)
		r.close()
		oi.resources = append(oi.resources[:i], oi.resources[i+1:]...)
		oi.env.debug("resource removed", "path", path.String())
		oi.structureChanged()
		return true
	}
	return false
}

// RemoveResourceInstance removes one instance of the named resource. When the
// last instance goes, the resource is removed too. It returns false if the
// resource or the instance does not exist.
func (oi *ObjectInstance) RemoveResourceInstance(name string, instanceID uint16) bool {
	r := oi.Resource(name)
	if r == nil || !r.multiple {
		return false
	}
	ri := r.ResourceInstance(instanceID)
	if ri == nil {
		return false
	}

	path := ri.Path()
	oi.env.removePath(path)
	r.removeInstance(instanceID)
	ri.closeHandler()

	if r.InstanceCount() == 0 {
		return oi.RemoveResource(name)
	}
	oi.structureChanged()
	return true
}

// Resource returns the resource with the given name, or nil.
func (oi *ObjectInstance) Resource(name string) *Resource {
	for _, r := range oi.resources {
		if r.name == name {
			return r
		}
	}
	return nil
}

// ResourceByID returns the resource whose name is the decimal id, or nil.
func (oi *ObjectInstance) ResourceByID(id int) *Resource {
	for _, r := range oi.resources {
		if r.nameID == id {
			return r
		}
	}
	return nil
}

// Resources returns the resources in insertion order.
func (oi *ObjectInstance) Resources() []*Resource {
	out := make([]*Resource, len(oi.resources))
	copy(out, oi.resources)
	return out
}

// ResourceCount counts values: a multi-instance resource contributes its
// instance count, a single-instance resource contributes 1.
func (oi *ObjectInstance) ResourceCount() int {
	n := 0
	for _, r := range oi.resources {
		if r.multiple {
			n += r.InstanceCount()
		} else {
			n++
		}
	}
	return n
}

// ResourceCountByName counts the values of one resource.
func (oi *ObjectInstance) ResourceCountByName(name string) int {
	r := oi.Resource(name)
	if r == nil {
		return 0
	}
	if r.multiple {
		return r.InstanceCount()
	}
	return 1
}

// AddObservationLevel sets the level on the instance and every resource.
func (oi *ObjectInstance) AddObservationLevel(level ObservationLevel) {
	oi.base.AddObservationLevel(level)
	for _, r := range oi.resources {
		r.AddObservationLevel(level)
	}
}

// RemoveObservationLevel clears the level on the instance and every resource.
func (oi *ObjectInstance) RemoveObservationLevel(level ObservationLevel) {
	oi.base.RemoveObservationLevel(level)
	for _, r := range oi.resources {
		r.RemoveObservationLevel(level)
	}
}

// notificationUpdate forwards a child change to the observers registered at
// the given levels.
func (oi *ObjectInstance) notificationUpdate(level ObservationLevel) {
	if level.Has(LevelInstance) && oi.reportHandler != nil {
		oi.reportHandler.TriggerObjectNotification()
	}
	if level.Has(LevelObject) {
		oi.parent.notificationUpdate()
	}
}

func (oi *ObjectInstance) structureChanged() {
	if oi.level.Has(LevelInstance | LevelObject) {
		oi.notificationUpdate(oi.level)
	}
}

func (oi *ObjectInstance) close() {
	for _, r := range oi.resources {
		r.close()
	}
	oi.resources = nil
	oi.closeHandler()
}
