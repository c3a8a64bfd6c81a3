package discovery

import (
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type for LwM2M clients.
	ServiceType = "_lwm2m._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default CoAP port.
	DefaultPort = 5683

	// DefaultVersion is the announced LwM2M enabler version.
	DefaultVersion = "1.0"

	// BindingUDP is the UDP binding mode.
	BindingUDP = "U"
)

// TXT record keys.
const (
	TXTKeyEndpoint     = "ep"
	TXTKeyVersion      = "lwm2m"
	TXTKeyBinding      = "b"
	TXTKeyState        = "st"
	TXTKeySecurity     = "sec"
	TXTKeyManufacturer = "mfr"
	TXTKeyModel        = "mdl"
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400

	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrTXTTooLarge         = errors.New("TXT records exceed size limit")
	ErrNotAdvertising      = errors.New("not advertising")
)

// RegistrationState is the announced server session state.
type RegistrationState uint8

const (
	// StateOffline means no session with the server.
	StateOffline RegistrationState = iota

	// StateRegistered means the secure session is up.
	StateRegistered
)

// String returns the TXT value for the state.
func (s RegistrationState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

func parseRegistrationState(s string) RegistrationState {
	if s == "registered" {
		return StateRegistered
	}
	return StateOffline
}

// DeviceInfo is what a device announces about itself.
type DeviceInfo struct {
	// Endpoint is the client endpoint name.
	Endpoint string

	// Port is the local CoAP port. Zero uses DefaultPort.
	Port uint16

	// Version is the LwM2M enabler version. Empty uses DefaultVersion.
	Version string

	// Binding is the binding mode. Empty uses BindingUDP.
	Binding string

	// State is the server session state.
	State RegistrationState

	// Security is the security mode name (optional).
	Security string

	// Manufacturer and Model describe the hardware (optional).
	Manufacturer string
	Model        string
}

// Service is a client found by browsing.
type Service struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the target host name.
	Host string

	// Port is the advertised CoAP port.
	Port uint16

	// Addresses contains every IP address seen for the instance.
	Addresses []string

	// Info is decoded from the TXT records.
	Info DeviceInfo
}
