package model

import (
	"errors"
	"testing"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/timer"
)

type recordingHandler struct {
	sent    []Node
	updated []Node
	deleted []string
	removed []string
}

func (h *recordingHandler) ObservationToBeSent(node Node) { h.sent = append(h.sent, node) }
func (h *recordingHandler) ValueUpdated(node Node)        { h.updated = append(h.updated, node) }
func (h *recordingHandler) ResourceToBeDeleted(path Path) {
	h.deleted = append(h.deleted, path.String())
}
func (h *recordingHandler) RemovePath(path Path) { h.removed = append(h.removed, path.String()) }

func newTestDevice(t *testing.T) (*Device, *recordingHandler, *timer.Manual) {
	t.Helper()
	clock := timer.NewManual()
	d := NewDevice("urn:dev:test", Config{Timers: clock})
	h := &recordingHandler{}
	d.SetObservationHandler(h)
	d.SetLinker(h)
	return d, h, clock
}

func newTestInstance(t *testing.T) (*ObjectInstance, *recordingHandler, *timer.Manual) {
	t.Helper()
	d, h, clock := newTestDevice(t)
	oi := d.CreateObject("3303").CreateObjectInstance()
	if oi == nil {
		t.Fatal("CreateObjectInstance() returned nil")
	}
	return oi, h, clock
}

func TestCreateResourceRejectsEmptyName(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	if r := oi.CreateStaticResource("", "x", TypeString, []byte("a"), false); r != nil {
		t.Error("CreateStaticResource with empty name returned a resource")
	}
	if r := oi.CreateDynamicResource("", "x", TypeString, true, false); r != nil {
		t.Error("CreateDynamicResource with empty name returned a resource")
	}
	if ri := oi.CreateDynamicResourceInstance("", "x", TypeString, false, 0); ri != nil {
		t.Error("CreateDynamicResourceInstance with empty name returned an instance")
	}
}

func TestResourceNameUniqueness(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	first := oi.CreateDynamicResource("5700", "Sensor Value", TypeFloat, true, false)
	second := oi.CreateDynamicResource("5700", "Sensor Value", TypeFloat, true, false)
	if first == nil || first != second {
		t.Fatalf("second create returned %p, want existing %p", second, first)
	}
	if n := len(oi.Resources()); n != 1 {
		t.Errorf("resources = %d, want 1", n)
	}
}

func TestResourceDefaults(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	static := oi.CreateStaticResource("5701", "Units", TypeString, []byte("Cel"), false)
	if static.Operation() != OpGet {
		t.Errorf("static Operation() = %v, want GET", static.Operation())
	}
	if static.IsObservable() || static.ReportHandler() != nil {
		t.Error("static resource should not be observable")
	}
	if string(static.Value()) != "Cel" {
		t.Errorf("static Value() = %q", static.Value())
	}
	if static.SetValue([]byte("K")) {
		t.Error("static resource accepted SetValue")
	}

	dyn := oi.CreateDynamicResource("5700", "Sensor Value", TypeFloat, true, false)
	if dyn.Operation() != OpGetPut {
		t.Errorf("dynamic Operation() = %v, want GET|PUT", dyn.Operation())
	}
	if dyn.ReportHandler() == nil {
		t.Error("observable resource has no report handler")
	}
	if dyn.NameID() != 5700 {
		t.Errorf("NameID() = %d, want 5700", dyn.NameID())
	}
	if got := dyn.Path().String(); got != "3303/0/5700" {
		t.Errorf("Path() = %q, want 3303/0/5700", got)
	}

	named := oi.CreateDynamicResource("temp", "", TypeString, false, false)
	if named.NameID() != UnnamedID {
		t.Errorf("NameID() = %d, want UnnamedID", named.NameID())
	}

	if oi.ContentType() != ContentFormatTLV {
		t.Errorf("instance ContentType() = %v, want TLV", oi.ContentType())
	}
	if !oi.IsObservable() || oi.ReportHandler() == nil {
		t.Error("object instance should be observable by default")
	}
}

func TestResourceInstanceCreation(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	ri := oi.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 0)
	if ri == nil {
		t.Fatal("instance under missing resource was not created")
	}
	r := oi.Resource("6")
	if r == nil || !r.SupportsMultipleInstances() {
		t.Fatal("missing resource should be created in multi-instance mode")
	}
	if ri.Operation() != OpGetPut {
		t.Errorf("dynamic instance Operation() = %v", ri.Operation())
	}

	if dup := oi.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 0); dup != nil {
		t.Error("duplicate instance id accepted")
	}

	sri := oi.CreateStaticResourceInstance("6", "Power Source", TypeInteger, []byte("5"), 1)
	if sri == nil {
		t.Fatal("static instance not created")
	}
	if sri.Operation() != OpGet || sri.IsObservable() {
		t.Errorf("static instance: Operation() = %v, observable = %v", sri.Operation(), sri.IsObservable())
	}
	if got := sri.Path().String(); got != "3303/0/6/1" {
		t.Errorf("Path() = %q", got)
	}

	oi.CreateDynamicResource("5700", "Sensor Value", TypeFloat, false, false)
	if ri := oi.CreateDynamicResourceInstance("5700", "Sensor Value", TypeFloat, false, 0); ri != nil {
		t.Error("instance under single-instance resource accepted")
	}
}

func TestResourceCount(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	oi.CreateDynamicResource("5700", "", TypeFloat, false, false)
	oi.CreateStaticResource("5701", "", TypeString, []byte("Cel"), false)
	for id := uint16(0); id < 3; id++ {
		oi.CreateDynamicResourceInstance("6", "", TypeInteger, false, id)
	}

	if n := oi.ResourceCount(); n != 5 {
		t.Errorf("ResourceCount() = %d, want 5", n)
	}
	if n := oi.ResourceCountByName("6"); n != 3 {
		t.Errorf("ResourceCountByName(6) = %d, want 3", n)
	}
	if n := oi.ResourceCountByName("5700"); n != 1 {
		t.Errorf("ResourceCountByName(5700) = %d, want 1", n)
	}
	if n := oi.ResourceCountByName("missing"); n != 0 {
		t.Errorf("ResourceCountByName(missing) = %d, want 0", n)
	}
}

func TestRemoveResource(t *testing.T) {
	oi, h, clock := newTestInstance(t)

	r := oi.CreateDynamicResource("5700", "", TypeFloat, true, false)
	if !r.ReportHandler().ParseNotificationAttribute("pmax=5") {
		t.Fatal("query rejected")
	}
	r.SetUnderObservation(true, nil)
	if clock.Running() != 1 {
		t.Fatalf("Running() = %d, want 1", clock.Running())
	}

	if !oi.RemoveResource("5700") {
		t.Fatal("RemoveResource() = false")
	}
	if clock.Running() != 0 {
		t.Errorf("Running() = %d after remove, want 0", clock.Running())
	}
	if len(h.removed) != 1 || h.removed[0] != "3303/0/5700" {
		t.Errorf("RemovePath calls = %v", h.removed)
	}
	if len(h.deleted) != 1 {
		t.Errorf("ResourceToBeDeleted calls = %v", h.deleted)
	}
	if oi.RemoveResource("5700") {
		t.Error("second RemoveResource() = true")
	}
}

func TestRemoveLastResourceInstanceRemovesResource(t *testing.T) {
	oi, h, _ := newTestInstance(t)

	oi.CreateDynamicResourceInstance("6", "", TypeInteger, false, 0)
	oi.CreateDynamicResourceInstance("6", "", TypeInteger, false, 1)

	if oi.RemoveResourceInstance("6", 7) {
		t.Error("removing unknown instance id = true")
	}
	if !oi.RemoveResourceInstance("6", 0) {
		t.Fatal("RemoveResourceInstance(6, 0) = false")
	}
	if oi.Resource("6") == nil {
		t.Fatal("resource removed while an instance remains")
	}
	if !oi.RemoveResourceInstance("6", 1) {
		t.Fatal("RemoveResourceInstance(6, 1) = false")
	}
	if oi.Resource("6") != nil {
		t.Error("resource kept after its last instance was removed")
	}

	want := []string{"3303/0/6/0", "3303/0/6/1", "3303/0/6"}
	if len(h.removed) != len(want) {
		t.Fatalf("RemovePath calls = %v, want %v", h.removed, want)
	}
	for i := range want {
		if h.removed[i] != want[i] {
			t.Errorf("RemovePath[%d] = %q, want %q", i, h.removed[i], want[i])
		}
	}
}

func TestRemoveObjectInstanceCascade(t *testing.T) {
	d, h, clock := newTestDevice(t)
	o := d.CreateObject("3303")
	oi := o.CreateObjectInstance()
	r := oi.CreateDynamicResource("5700", "", TypeFloat, true, false)
	r.ReportHandler().ParseNotificationAttribute("pmax=10")
	r.SetUnderObservation(true, nil)

	if !o.RemoveObjectInstance(0) {
		t.Fatal("RemoveObjectInstance(0) = false")
	}
	if o.InstanceCount() != 0 {
		t.Errorf("InstanceCount() = %d", o.InstanceCount())
	}
	if clock.Running() != 0 {
		t.Errorf("timers running after cascade: %d", clock.Running())
	}
	clock.Advance(time.Minute)
	if len(h.sent) != 0 {
		t.Errorf("notification after removal: %d", len(h.sent))
	}
	if o.RemoveObjectInstance(0) {
		t.Error("second RemoveObjectInstance(0) = true")
	}
}

func TestObjectInstanceIDs(t *testing.T) {
	d, _, _ := newTestDevice(t)
	o := d.CreateObject("3")

	a := o.CreateObjectInstance()
	b := o.CreateObjectInstanceWithID(5)
	c := o.CreateObjectInstance()
	if a.InstanceID() != 0 || b.InstanceID() != 5 || c.InstanceID() != 1 {
		t.Errorf("ids = %d, %d, %d; want 0, 5, 1", a.InstanceID(), b.InstanceID(), c.InstanceID())
	}
	if o.CreateObjectInstanceWithID(5) != nil {
		t.Error("duplicate instance id accepted")
	}
	if d.CreateObject("3") != o {
		t.Error("CreateObject with existing name returned a new object")
	}
	if d.CreateObject("") != nil {
		t.Error("CreateObject with empty name returned an object")
	}
}

func TestObservationLevelPropagation(t *testing.T) {
	d, _, _ := newTestDevice(t)
	o := d.CreateObject("3303")
	oi := o.CreateObjectInstance()
	r1 := oi.CreateDynamicResource("5700", "", TypeFloat, true, false)
	r2 := oi.CreateDynamicResource("5701", "", TypeString, false, false)

	oi.AddObservationLevel(LevelInstance)
	for _, r := range []*Resource{r1, r2} {
		if !r.ObservationLevel().Has(LevelInstance) {
			t.Errorf("resource %s missing instance level", r.Name())
		}
	}

	o.AddObservationLevel(LevelObject)
	if !r1.ObservationLevel().Has(LevelObject) {
		t.Error("object level not mirrored to resources")
	}

	oi.RemoveObservationLevel(LevelInstance)
	if r1.ObservationLevel().Has(LevelInstance) {
		t.Error("instance level not cleared on resources")
	}
	if !r1.ObservationLevel().Has(LevelObject) {
		t.Error("object level cleared by instance removal")
	}

	r3 := oi.CreateDynamicResource("5702", "", TypeFloat, false, false)
	if !r3.ObservationLevel().Has(LevelObject) {
		t.Error("new resource did not inherit the instance level")
	}
}

func TestValueChangeNotifiesInstanceObserver(t *testing.T) {
	oi, h, _ := newTestInstance(t)
	r := oi.CreateDynamicResource("5700", "", TypeFloat, false, false)

	oi.SetUnderObservation(true, nil)
	oi.AddObservationLevel(LevelInstance)

	if !r.SetValue([]byte("21.5")) {
		t.Fatal("SetValue() = false for a new value")
	}
	if len(h.sent) != 1 || h.sent[0] != Node(oi) {
		t.Fatalf("notifications = %v, want one for the instance", h.sent)
	}

	if r.SetValue([]byte("21.5")) {
		t.Error("SetValue() = true for the same value")
	}
	if len(h.sent) != 1 {
		t.Errorf("unchanged value notified the instance")
	}
}

func TestStructuralChangeNotifiesInstanceObserver(t *testing.T) {
	oi, h, _ := newTestInstance(t)
	oi.SetUnderObservation(true, nil)
	oi.AddObservationLevel(LevelInstance)

	oi.CreateDynamicResource("5700", "", TypeFloat, false, false)
	oi.RemoveResource("5700")

	if len(h.sent) != 2 {
		t.Errorf("notifications = %d, want 2", len(h.sent))
	}
}

func TestResourceObservationThresholds(t *testing.T) {
	oi, h, _ := newTestInstance(t)
	r := oi.CreateDynamicResource("5700", "", TypeFloat, true, false)
	r.SetValue([]byte("20"))

	if !r.ReportHandler().ParseNotificationAttribute("gt=25") {
		t.Fatal("query rejected")
	}
	r.SetUnderObservation(true, nil)
	r.AddObservationLevel(LevelResource)

	r.SetValue([]byte("22"))
	if len(h.sent) != 0 {
		t.Fatalf("notification below gt")
	}
	r.SetValue([]byte("26"))
	if len(h.sent) != 1 || h.sent[0] != Node(r) {
		t.Errorf("notifications = %v, want one for the resource", h.sent)
	}
}

func TestObservationNumberAndToken(t *testing.T) {
	oi, _, _ := newTestInstance(t)

	oi.SetUnderObservation(true, nil)
	oi.SetObservationToken([]byte{0xAB, 0xCD})
	if got := oi.ObservationToken(); len(got) != 2 || got[0] != 0xAB {
		t.Errorf("ObservationToken() = % X", got)
	}
	if n := oi.NextObservationNumber(); n != 1 {
		t.Errorf("NextObservationNumber() = %d, want 1", n)
	}
	if n := oi.NextObservationNumber(); n != 2 {
		t.Errorf("NextObservationNumber() = %d, want 2", n)
	}

	oi.SetUnderObservation(false, nil)
	if oi.ObservationToken() != nil {
		t.Error("token kept after observation stopped")
	}
	if oi.IsUnderObservation() {
		t.Error("IsUnderObservation() = true after stop")
	}
}

func TestLookup(t *testing.T) {
	d, _, _ := newTestDevice(t)
	oi := d.CreateObject("3").CreateObjectInstance()
	oi.CreateStaticResource("0", "Manufacturer", TypeString, []byte("Acme"), false)
	oi.CreateStaticResourceInstance("6", "Power Source", TypeInteger, []byte("1"), 0)

	tests := []struct {
		path    string
		kind    Kind
		wantErr error
	}{
		{"3", KindObject, nil},
		{"3/0", KindObjectInstance, nil},
		{"3/0/0", KindResource, nil},
		{"3/0/6/0", KindResourceInstance, nil},
		{"4", 0, ErrNotFound},
		{"3/1", 0, ErrNotFound},
		{"3/x", 0, ErrInvalidPath},
		{"3/0/9", 0, ErrNotFound},
		{"3/0/6/4", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.path, err)
			}
			node, err := d.Lookup(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Lookup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if node.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", node.Kind(), tt.kind)
			}
			if node.Path().String() != tt.path {
				t.Errorf("Path() = %q, want %q", node.Path(), tt.path)
			}
		})
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/3303/0/5700", "3303/0/5700", false},
		{"3/0/", "3/0", false},
		{"", "", true},
		{"/", "", true},
		{"3//0", "", true},
		{"1/2/3/4/5", "", true},
	}
	for _, tt := range tests {
		p, err := ParsePath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && p.String() != tt.want {
			t.Errorf("ParsePath(%q) = %q, want %q", tt.in, p, tt.want)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	if got := (OpGet | OpPut).String(); got != "GET|PUT" {
		t.Errorf("Operation.String() = %q", got)
	}
	if got := OpNone.String(); got != "-" {
		t.Errorf("OpNone.String() = %q", got)
	}
	if got := (LevelObject | LevelResource).String(); got != "O|R" {
		t.Errorf("ObservationLevel.String() = %q", got)
	}
	if got := TypeFloat.String(); got != "float" {
		t.Errorf("TypeFloat.String() = %q", got)
	}
	if typ, ok := ParseResourceType("integer"); !ok || typ != TypeInteger {
		t.Errorf("ParseResourceType(integer) = %v, %v", typ, ok)
	}
	if got := ContentFormatTLV.String(); got != "application/vnd.oma.lwm2m+tlv" {
		t.Errorf("ContentFormatTLV.String() = %q", got)
	}
}
