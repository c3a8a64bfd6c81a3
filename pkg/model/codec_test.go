package model

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mash-protocol/lwm2m-go/pkg/tlv"
)

func buildDeviceInstance(t *testing.T) *ObjectInstance {
	t.Helper()
	d, _, _ := newTestDevice(t)
	oi := d.CreateObject("3").CreateObjectInstance()
	oi.CreateDynamicResource("0", "Manufacturer", TypeString, false, false).SetValue([]byte("Acme"))
	oi.CreateDynamicResource("9", "Battery Level", TypeInteger, true, false).SetValue([]byte("87"))
	oi.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 0).SetValue([]byte("1"))
	oi.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 1).SetValue([]byte("5"))
	return oi
}

func TestSerializeResources(t *testing.T) {
	oi := buildDeviceInstance(t)

	got, err := Serialize(oi.Resources())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	want := []byte{
		0xC4, 0x00, 'A', 'c', 'm', 'e',
		0xC2, 0x09, '8', '7',
		0x86, 0x06, 0x41, 0x00, '1', 0x41, 0x01, '5',
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Serialize() = % X\nwant % X", got, want)
	}

	wrapped, err := SerializeObjectInstance(oi)
	if err != nil {
		t.Fatalf("SerializeObjectInstance() error = %v", err)
	}
	if !tlv.IsObjectInstance(wrapped) {
		t.Error("SerializeObjectInstance() output is not an object instance")
	}
	if !bytes.Equal(wrapped[3:], want) {
		t.Errorf("wrapped body differs: % X", wrapped)
	}
}

func TestDeserializeRejectsBareResources(t *testing.T) {
	oi := buildDeviceInstance(t)
	bare, err := Serialize(oi.Resources())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	_, err = DeserializeResources(bare, oi.Resources())
	if !errors.Is(err, tlv.ErrNotObjectInstance) {
		t.Errorf("DeserializeResources(bare) error = %v, want ErrNotObjectInstance", err)
	}
}

func TestSerializeResourceInstance(t *testing.T) {
	oi := buildDeviceInstance(t)

	got, err := SerializeResourceInstance(oi.Resource("6").ResourceInstance(1))
	if err != nil {
		t.Fatalf("SerializeResourceInstance() error = %v", err)
	}
	want := []byte{0x41, 0x01, '5'}
	if !bytes.Equal(got, want) {
		t.Errorf("SerializeResourceInstance() = % X, want % X", got, want)
	}
}

func TestSerializeUnnamedResource(t *testing.T) {
	oi, _, _ := newTestInstance(t)
	oi.CreateDynamicResource("temp", "", TypeString, false, false)

	_, err := Serialize(oi.Resources())
	if !errors.Is(err, ErrUnnamedNode) {
		t.Errorf("Serialize() error = %v, want ErrUnnamedNode", err)
	}
}

func TestDeserializeRoundTrip(t *testing.T) {
	src := buildDeviceInstance(t)
	payload, err := SerializeObjectInstance(src)
	if err != nil {
		t.Fatalf("SerializeObjectInstance() error = %v", err)
	}

	// Same shape, empty values.
	d, _, _ := newTestDevice(t)
	dst := d.CreateObject("3").CreateObjectInstance()
	dst.CreateDynamicResource("0", "Manufacturer", TypeString, false, false)
	dst.CreateDynamicResource("9", "Battery Level", TypeInteger, true, false)
	dst.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 0)
	dst.CreateDynamicResourceInstance("6", "Power Source", TypeInteger, false, 1)

	changed, err := DeserializeResources(payload, dst.Resources())
	if err != nil {
		t.Fatalf("DeserializeResources() error = %v", err)
	}
	if len(changed) != 3 {
		t.Errorf("changed = %d resources, want 3", len(changed))
	}

	again, err := SerializeObjectInstance(dst)
	if err != nil {
		t.Fatalf("SerializeObjectInstance() error = %v", err)
	}
	if !bytes.Equal(payload, again) {
		t.Errorf("round trip differs:\n got % X\nwant % X", again, payload)
	}
}

func TestDeserializeResourcesErrors(t *testing.T) {
	oi := buildDeviceInstance(t)
	oi.CreateStaticResource("1", "Model", TypeString, []byte("X1"), false)

	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{
			name:    "bare resource",
			payload: []byte{0xC1, 0x00, 'x'},
			wantErr: tlv.ErrNotObjectInstance,
		},
		{
			name:    "truncated",
			payload: []byte{0x05, 0x00, 0xC4, 0x00, 'x'},
			wantErr: tlv.ErrTruncated,
		},
		{
			name:    "unknown resource",
			payload: []byte{0x03, 0x00, 0xC1, 0x63, 'x'},
			wantErr: ErrUnknownResource,
		},
		{
			name:    "static resource",
			payload: []byte{0x03, 0x00, 0xC1, 0x01, 'x'},
			wantErr: ErrOperationForbidden,
		},
		{
			name:    "value for multiple resource",
			payload: []byte{0x03, 0x00, 0xC1, 0x06, '2'},
			wantErr: ErrUnsupportedWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializeResources(tt.payload, oi.Resources())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := string(oi.Resource("0").Value()); got != "Acme" {
		t.Errorf("failed writes changed a value: %q", got)
	}
}

func TestDeserializeIsAtomic(t *testing.T) {
	oi := buildDeviceInstance(t)

	// Valid write to /0 followed by an unknown resource id.
	payload := []byte{0x07, 0x00, 0xC2, 0x00, 'Z', 'Z', 0xC1, 0x63, 'x'}
	if _, err := DeserializeResources(payload, oi.Resources()); err == nil {
		t.Fatal("expected error")
	}
	if got := string(oi.Resource("0").Value()); got != "Acme" {
		t.Errorf("partial write applied: %q", got)
	}
}

func TestDeserializeCreatesResourceInstances(t *testing.T) {
	oi := buildDeviceInstance(t)

	// /6 with instances 1="7" and 2="9"
	payload := []byte{0x08, 0x00, 0x08, 0x86, 0x06, 0x41, 0x01, '7', 0x41, 0x02, '9'}
	if _, err := DeserializeResources(payload, oi.Resources()); err != nil {
		t.Fatalf("DeserializeResources() error = %v", err)
	}
	r := oi.Resource("6")
	if r.InstanceCount() != 3 {
		t.Fatalf("InstanceCount() = %d, want 3", r.InstanceCount())
	}
	if got := string(r.ResourceInstance(1).Value()); got != "7" {
		t.Errorf("instance 1 = %q, want 7", got)
	}
	if got := string(r.ResourceInstance(2).Value()); got != "9" {
		t.Errorf("instance 2 = %q, want 9", got)
	}
}

func TestDeserializeResource(t *testing.T) {
	oi := buildDeviceInstance(t)
	r := oi.Resource("9")

	if _, err := DeserializeResource([]byte{0xC2, 0x09, '4', '2'}, r); err != nil {
		t.Fatalf("DeserializeResource() error = %v", err)
	}
	if got := string(r.Value()); got != "42" {
		t.Errorf("Value() = %q, want 42", got)
	}

	if _, err := DeserializeResource([]byte{0xC1, 0x00, 'x'}, r); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("mismatched id error = %v, want ErrUnknownResource", err)
	}
}

func TestSerializeObject(t *testing.T) {
	d, _, _ := newTestDevice(t)
	o := d.CreateObject("3303")
	o.CreateObjectInstance().CreateDynamicResource("5700", "", TypeFloat, false, false).SetValue([]byte("1"))
	o.CreateObjectInstance().CreateDynamicResource("5700", "", TypeFloat, false, false).SetValue([]byte("2"))

	got, err := SerializeObject(o)
	if err != nil {
		t.Fatalf("SerializeObject() error = %v", err)
	}
	records, err := tlv.Decode(got)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 2 || records[1].ID != 1 {
		t.Fatalf("records = %+v", records)
	}
	if v := string(records[1].Children[0].Value); v != "2" {
		t.Errorf("second instance value = %q", v)
	}
}
