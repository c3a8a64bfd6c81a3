package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrVersion is returned when a state file has an unknown version.
var ErrVersion = errors.New("unsupported state file version")

// DeviceState contains the persisted runtime state of one device.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Endpoint is the client endpoint name the state belongs to.
	Endpoint string `json:"endpoint"`

	// Resources maps a resource path ("3303/0/5700") to its state.
	Resources map[string]ResourceState `json:"resources,omitempty"`
}

// ResourceState is the persisted state of one resource.
type ResourceState struct {
	// Value of a single-instance resource.
	Value []byte `json:"value,omitempty"`

	// Instances holds the values of a multi-instance resource by id.
	Instances map[string][]byte `json:"instances,omitempty"`

	// Attributes is the write-attribute query in effect ("pmin=5&st=1").
	Attributes string `json:"attributes,omitempty"`
}

// Capture records every dynamic resource of device.
func Capture(device *model.Device) *DeviceState {
	state := &DeviceState{
		Endpoint:  device.Endpoint(),
		Resources: make(map[string]ResourceState),
	}
	device.Resources(func(r *model.Resource) {
		if r.IsStatic() {
			return
		}
		var rs ResourceState
		if r.SupportsMultipleInstances() {
			rs.Instances = make(map[string][]byte)
			for _, ri := range r.Instances() {
				if !ri.IsStatic() {
					rs.Instances[strconv.Itoa(int(ri.InstanceID()))] = ri.Value()
				}
			}
		} else {
			rs.Value = r.Value()
		}
		if h := r.ReportHandler(); h != nil {
			rs.Attributes = h.Attributes().Query()
		}
		state.Resources[r.Path().String()] = rs
	})
	return state
}

// Restore writes the recorded values back into device. Paths that no longer
// exist are skipped. It returns the number of resources restored.
func Restore(device *model.Device, state *DeviceState) (int, error) {
	if state == nil {
		return 0, nil
	}
	if state.Version != StateVersion {
		return 0, fmt.Errorf("%w: %d", ErrVersion, state.Version)
	}

	paths := make([]string, 0, len(state.Resources))
	for p := range state.Resources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	restored := 0
	var errs []error
	for _, p := range paths {
		path, err := model.ParsePath(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		node, err := device.Lookup(path)
		if err != nil {
			continue
		}
		r, ok := node.(*model.Resource)
		if !ok || r.IsStatic() {
			continue
		}

		rs := state.Resources[p]
		if r.SupportsMultipleInstances() {
			for id, v := range rs.Instances {
				n, err := strconv.ParseUint(id, 10, 16)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: instance %q: %w", p, id, err))
					continue
				}
				if ri := r.ResourceInstance(uint16(n)); ri != nil && !ri.IsStatic() {
					ri.SetValue(v)
				}
			}
		} else if rs.Value != nil {
			r.SetValue(rs.Value)
		}
		if rs.Attributes != "" {
			if h := r.ReportHandler(); h != nil {
				if err := h.ApplyQuery(rs.Attributes); err != nil {
					errs = append(errs, fmt.Errorf("%s: attributes: %w", p, err))
				}
			}
		}
		restored++
	}
	return restored, errors.Join(errs...)
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Path returns the state file path.
func (s *DeviceStateStore) Path() string {
	return s.path
}

// Save persists the device state. The file is replaced atomically.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
