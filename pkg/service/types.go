package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/connection"
	"github.com/mash-protocol/lwm2m-go/pkg/discovery"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/report"
	"github.com/mash-protocol/lwm2m-go/pkg/transport"
	"github.com/mash-protocol/lwm2m-go/pkg/uplink"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotConnected   = errors.New("not connected")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotWritable    = errors.New("not a writable resource")
)

// Defaults.
const (
	DefaultReadBufferSize = 1500
	DefaultEventQueueSize = 64
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// DeviceFactory builds the device tree with the model configuration the
// service provides. The configuration carries the service's timer manager,
// so report timers fire on the event loop.
type DeviceFactory func(mc model.Config) (*model.Device, error)

// DeviceConfig configures a DeviceService.
type DeviceConfig struct {
	// Dialer opens the secure session to the server. Required.
	Dialer *connection.Dialer

	// Reconnect configures the retry policy after a lost session.
	Reconnect connection.Options

	// KeepAlive configures CoAP ping liveness checks.
	KeepAlive transport.KeepAliveConfig

	// DisableKeepAlive turns CoAP pings off.
	DisableKeepAlive bool

	// ConfirmableNotifications sends notifications as CON messages. A reset
	// answering one cancels the observation.
	ConfirmableNotifications bool

	// StepPolicy is passed to every report handler.
	StepPolicy report.StepPolicy

	// ReadBufferSize is the largest datagram accepted.
	ReadBufferSize int

	// EventQueueSize is the event loop backlog.
	EventQueueSize int

	// StateStore persists writable values. Nil disables persistence.
	StateStore *persistence.DeviceStateStore

	// Advertiser announces the device over mDNS. Nil disables it.
	Advertiser discovery.Advertiser

	// DiscoveryInfo is the announced record. The endpoint defaults to the
	// device endpoint.
	DiscoveryInfo discovery.DeviceInfo

	// Uplink publishes UplinkInstances every UplinkInterval. Nil disables it.
	Uplink          *uplink.Client
	UplinkInstances []model.Path
	UplinkInterval  time.Duration

	// ProtocolLogger receives CoAP-level events. Nil disables it.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultDeviceConfig returns a DeviceConfig with sensible defaults.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Reconnect:      connection.Options{Backoff: connection.DefaultBackoffConfig()},
		KeepAlive:      transport.DefaultKeepAliveConfig(),
		ReadBufferSize: DefaultReadBufferSize,
		EventQueueSize: DefaultEventQueueSize,
		UplinkInterval: time.Minute,
	}
}

// Validate checks if the device config is valid.
func (c *DeviceConfig) Validate() error {
	if c.Dialer == nil || c.Dialer.Address == "" {
		return ErrInvalidConfig
	}
	if c.Uplink != nil && len(c.UplinkInstances) == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Status is a snapshot of the service state.
type Status struct {
	State        ServiceState
	Connection   connection.State
	ConnectionID string
	KeepAlive    transport.KeepAliveStats
	Announced    discovery.RegistrationState
}

// Event types for service callbacks.
type EventType uint8

const (
	// EventConnected - secure session established.
	EventConnected EventType = iota

	// EventDisconnected - session lost or closed.
	EventDisconnected

	// EventReconnecting - a retry is scheduled.
	EventReconnecting

	// EventValueChanged - the server wrote a value or attributes.
	EventValueChanged

	// EventNotificationSent - an observe notification went out.
	EventNotificationSent

	// EventObservationCancelled - the server reset a notification.
	EventObservationCancelled

	// EventResourceDeleted - a node was removed from the tree.
	EventResourceDeleted
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventReconnecting:
		return "RECONNECTING"
	case EventValueChanged:
		return "VALUE_CHANGED"
	case EventNotificationSent:
		return "NOTIFICATION_SENT"
	case EventObservationCancelled:
		return "OBSERVATION_CANCELLED"
	case EventResourceDeleted:
		return "RESOURCE_DELETED"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Path is the affected node (for tree events).
	Path model.Path

	// Attempt and Delay describe a scheduled retry.
	Attempt int
	Delay   time.Duration

	// Error is set if the event is an error.
	Error error
}

// EventHandler handles service events.
type EventHandler func(Event)
