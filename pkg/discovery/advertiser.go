package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// Advertise starts announcing info. A running announcement is replaced.
	Advertise(ctx context.Context, info *DeviceInfo) error

	// Update replaces the TXT records of the running announcement.
	Update(info *DeviceInfo) error

	// Stop withdraws the announcement.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}

// Announcer keeps the device announcement in step with the server session.
type Announcer struct {
	mu sync.Mutex

	advertiser Advertiser
	info       DeviceInfo
	active     bool
	logger     *slog.Logger
}

// NewAnnouncer creates an announcer for info. A nil logger disables logging.
func NewAnnouncer(advertiser Advertiser, info DeviceInfo, logger *slog.Logger) *Announcer {
	return &Announcer{
		advertiser: advertiser,
		info:       info,
		logger:     logger,
	}
}

// Start begins advertising.
func (a *Announcer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ValidateInstanceName(InstanceName(a.info.Endpoint)); err != nil {
		return err
	}
	info := a.info
	if err := a.advertiser.Advertise(ctx, &info); err != nil {
		return err
	}
	a.active = true
	a.debug("advertising started", "endpoint", a.info.Endpoint, "state", a.info.State)
	return nil
}

// SetState announces a new registration state. Unchanged states and calls
// before Start only record the state.
func (a *Announcer) SetState(state RegistrationState) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.info.State == state {
		return nil
	}
	a.info.State = state
	if !a.active {
		return nil
	}
	info := a.info
	if err := a.advertiser.Update(&info); err != nil {
		return err
	}
	a.debug("advertised state changed", "state", state)
	return nil
}

// State returns the announced registration state.
func (a *Announcer) State() RegistrationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.State
}

// Stop withdraws the announcement.
func (a *Announcer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return nil
	}
	a.active = false
	return a.advertiser.Stop()
}

func (a *Announcer) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
