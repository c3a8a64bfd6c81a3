package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/connection"
	"github.com/mash-protocol/lwm2m-go/pkg/discovery"
	"github.com/mash-protocol/lwm2m-go/pkg/interaction"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/timer"
	"github.com/mash-protocol/lwm2m-go/pkg/transport"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// DeviceService orchestrates an LwM2M device.
type DeviceService struct {
	mu sync.RWMutex

	config DeviceConfig
	device *model.Device
	state  ServiceState

	timers     *timer.Manager
	builder    *wire.CoAPBuilder
	dispatcher *interaction.Dispatcher
	conn       *connection.Manager
	keepAlive  *transport.KeepAlive
	announcer  *discovery.Announcer

	// Event loop
	events chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Current session, guarded by mu. The generation tells events of a
	// replaced session apart.
	session    *connection.Session
	sessionGen uint64
	connID     string

	// Confirmable notifications awaiting an ACK, by message id. Loop only.
	pending map[uint16]model.Path

	eventHandlers []EventHandler

	logger         *slog.Logger
	protocolLogger log.Logger
}

// NewDeviceService creates a service and builds its tree with build.
func NewDeviceService(build DeviceFactory, config DeviceConfig) (*DeviceService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	if config.EventQueueSize <= 0 {
		config.EventQueueSize = DefaultEventQueueSize
	}
	if config.UplinkInterval <= 0 {
		config.UplinkInterval = time.Minute
	}

	s := &DeviceService{
		config:         config,
		state:          StateIdle,
		builder:        wire.NewCoAPBuilder(),
		events:         make(chan func(), config.EventQueueSize),
		done:           make(chan struct{}),
		pending:        make(map[uint16]model.Path),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}
	s.timers = timer.NewManager(func(fn func()) { s.post(fn) })

	device, err := build(model.Config{
		Timers:     s.timers,
		StepPolicy: config.StepPolicy,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build device: %w", err)
	}
	s.device = device
	device.SetObservationHandler(s)
	device.SetLinker(s)

	s.dispatcher = interaction.NewDispatcher(device, s.builder, &interaction.Options{Logger: config.Logger})

	reconnect := config.Reconnect
	if reconnect.Logger == nil {
		reconnect.Logger = config.Logger
	}
	s.conn = connection.NewManager(s.connect, &reconnect)
	s.conn.OnStateChange(s.connectionStateChanged)
	s.conn.OnReconnecting(func(attempt int, delay time.Duration) {
		s.emitEvent(Event{Type: EventReconnecting, Attempt: attempt, Delay: delay})
	})

	if !config.DisableKeepAlive {
		s.keepAlive = transport.NewKeepAlive(config.KeepAlive, s.sendPing, s.keepAliveTimeout)
		s.keepAlive.SetPongReceivedCallback(func(mid uint16, latency time.Duration) {
			s.debugLog("pong received", "mid", mid, "latency", latency)
		})
	}

	if config.Advertiser != nil {
		info := config.DiscoveryInfo
		if info.Endpoint == "" {
			info.Endpoint = device.Endpoint()
		}
		info.State = discovery.StateOffline
		s.announcer = discovery.NewAnnouncer(config.Advertiser, info, config.Logger)
	}

	return s, nil
}

// Device returns the device tree. Access it only through Do while the
// service runs.
func (s *DeviceService) Device() *model.Device {
	return s.device
}

// State returns the current service state.
func (s *DeviceService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnEvent registers a handler for service events.
func (s *DeviceService) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// Start restores persisted values, starts the event loop and begins
// connecting to the server. Connection failures are retried in the
// background.
func (s *DeviceService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.restoreState(); err != nil && s.logger != nil {
		s.logger.Warn("state restore failed", "error", err)
	}

	s.wg.Add(1)
	go s.loop()

	if s.announcer != nil {
		if err := s.announcer.Start(s.ctx); err != nil && s.logger != nil {
			s.logger.Warn("mDNS announcement failed", "error", err)
		}
	}

	s.conn.StartReconnectLoop()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.conn.Connect(s.ctx); err != nil {
			s.debugLog("initial connect failed", "error", err)
			s.conn.Retry()
		}
	}()

	if s.config.Uplink != nil {
		s.wg.Add(1)
		go s.uplinkLoop()
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}

// Stop closes the session, stops every background task and saves the
// final state. A stopped service cannot be restarted.
func (s *DeviceService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.cancel()
	s.conn.Close()
	if s.keepAlive != nil {
		s.keepAlive.Stop()
	}
	s.dropSession("service stopped")

	if s.announcer != nil {
		if err := s.announcer.Stop(); err != nil {
			s.debugLog("mDNS withdraw failed", "error", err)
		}
	}
	if s.config.Uplink != nil {
		_ = s.config.Uplink.Close()
	}

	close(s.done)
	s.wg.Wait()

	s.timers.StopAll()
	s.saveState()
	s.device.Close()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	return nil
}

// Status returns a snapshot of the service state.
func (s *DeviceService) Status() Status {
	s.mu.RLock()
	st := Status{
		State:        s.state,
		ConnectionID: s.connID,
	}
	s.mu.RUnlock()

	st.Connection = s.conn.State()
	if s.keepAlive != nil {
		st.KeepAlive = s.keepAlive.Stats()
	}
	if s.announcer != nil {
		st.Announced = s.announcer.State()
	}
	return st
}

// Do runs fn on the event loop and waits for its result.
func (s *DeviceService) Do(ctx context.Context, fn func(d *model.Device) error) error {
	if s.State() != StateRunning {
		return ErrNotStarted
	}
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn(s.device) }) {
		return ErrNotStarted
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetResourceValue updates a resource or resource instance from the device
// side. Observers are notified as the report attributes dictate.
func (s *DeviceService) SetResourceValue(ctx context.Context, path model.Path, value []byte) error {
	return s.Do(ctx, func(d *model.Device) error {
		node, err := d.Lookup(path)
		if err != nil {
			return err
		}
		changed := false
		switch n := node.(type) {
		case *model.Resource:
			if n.IsStatic() || n.SupportsMultipleInstances() {
				return fmt.Errorf("%w: %s", ErrNotWritable, path)
			}
			changed = n.SetValue(value)
		case *model.ResourceInstance:
			if n.IsStatic() {
				return fmt.Errorf("%w: %s", ErrNotWritable, path)
			}
			changed = n.SetValue(value)
		default:
			return fmt.Errorf("%w: %s", ErrNotWritable, path)
		}
		if changed {
			s.saveState()
		}
		return nil
	})
}

// post queues fn on the event loop. It returns false once the service
// has stopped.
func (s *DeviceService) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *DeviceService) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// connect is the connection.ConnectFunc: one dial and handshake attempt.
func (s *DeviceService) connect(ctx context.Context) error {
	sess, err := s.config.Dialer.Dial(ctx)
	if err != nil {
		s.logError(log.LayerTransport, err, "connect")
		return err
	}

	s.mu.Lock()
	if s.state != StateStarting && s.state != StateRunning {
		s.mu.Unlock()
		_ = sess.Close()
		return ErrNotStarted
	}
	s.sessionGen++
	gen := s.sessionGen
	s.session = sess
	s.connID = uuid.NewString()
	s.mu.Unlock()

	s.logState(log.StateEntityHandshake, "", "ESTABLISHED", s.config.Dialer.Address)

	s.wg.Add(1)
	go s.readLoop(sess, gen)

	if s.keepAlive != nil {
		s.keepAlive.Start(s.ctx)
	}
	return nil
}

// readLoop delivers datagrams of one session to the event loop.
func (s *DeviceService) readLoop(sess *connection.Session, gen uint64) {
	defer s.wg.Done()
	buf := make([]byte, s.config.ReadBufferSize)
	for {
		n := sess.Adapter.Read(buf)
		switch {
		case n > 0:
			data := append([]byte(nil), buf[:n]...)
			if !s.post(func() { s.handleDatagram(gen, data) }) {
				return
			}
		case n == transport.StatusWantRead || n == 0:
			if s.ctx.Err() != nil {
				return
			}
		default:
			reason := transport.StatusText(n)
			s.post(func() { s.sessionLost(gen, reason) })
			return
		}
	}
}

func (s *DeviceService) keepAliveTimeout() {
	s.mu.RLock()
	gen := s.sessionGen
	s.mu.RUnlock()
	// The keep-alive goroutine must not block on a full queue.
	go s.post(func() { s.sessionLost(gen, "keep-alive timeout") })
}

// sessionLost closes the session of generation gen and hands the retry
// decision to the connection manager.
func (s *DeviceService) sessionLost(gen uint64, reason string) {
	s.mu.RLock()
	current := s.sessionGen
	s.mu.RUnlock()
	if gen != current {
		return
	}
	if s.keepAlive != nil {
		s.keepAlive.Stop()
	}
	s.pending = make(map[uint16]model.Path)
	if s.dropSession(reason) {
		s.conn.NotifyConnectionLost()
	}
}

// dropSession closes the current session, if any.
func (s *DeviceService) dropSession(reason string) bool {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return false
	}

	_ = sess.Close()
	s.logState(log.StateEntityConnection, "CONNECTED", "CLOSED", reason)
	return true
}

func (s *DeviceService) connectionStateChanged(from, to connection.State) {
	s.logState(log.StateEntityConnection, from.String(), to.String(), "")

	switch to {
	case connection.StateConnected:
		s.emitEvent(Event{Type: EventConnected})
		s.announce(discovery.StateRegistered)
	case connection.StateDisconnected, connection.StateReconnecting:
		if from == connection.StateConnected {
			s.emitEvent(Event{Type: EventDisconnected})
			s.announce(discovery.StateOffline)
		}
	case connection.StateClosed:
		s.announce(discovery.StateOffline)
	}
}

func (s *DeviceService) announce(state discovery.RegistrationState) {
	if s.announcer == nil {
		return
	}
	if err := s.announcer.SetState(state); err != nil {
		s.debugLog("mDNS update failed", "state", state, "error", err)
	}
}

// send encodes msg and writes it to the current session.
func (s *DeviceService) send(msg *pool.Message) error {
	s.mu.RLock()
	sess := s.session
	s.mu.RUnlock()
	if sess == nil {
		return ErrNotConnected
	}

	data, err := wire.Encode(msg)
	if err != nil {
		s.logError(log.LayerWire, err, "encode")
		return err
	}
	if err := sess.Send(data); err != nil {
		s.logError(log.LayerTransport, err, "send")
		return err
	}
	s.logFrame(log.DirectionOut, data)
	return nil
}

// sendPing runs on the keep-alive goroutine.
func (s *DeviceService) sendPing() (uint16, error) {
	ping := s.builder.BuildPing(s.context())
	if err := s.send(ping); err != nil {
		return 0, err
	}
	return uint16(ping.MessageID()), nil
}

func (s *DeviceService) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// restoreState loads persisted values before the loop starts.
func (s *DeviceService) restoreState() error {
	store := s.config.StateStore
	if store == nil {
		return nil
	}
	state, err := store.Load()
	if err != nil || state == nil {
		return err
	}
	n, err := persistence.Restore(s.device, state)
	s.debugLog("state restored", "path", store.Path(), "resources", n)
	return err
}

// saveState runs on the event loop, or after it has stopped.
func (s *DeviceService) saveState() {
	store := s.config.StateStore
	if store == nil {
		return
	}
	if err := store.Save(persistence.Capture(s.device)); err != nil && s.logger != nil {
		s.logger.Warn("state save failed", "path", store.Path(), "error", err)
	}
}

func (s *DeviceService) emitEvent(event Event) {
	s.mu.RLock()
	handlers := s.eventHandlers
	s.mu.RUnlock()
	for _, handler := range handlers {
		go handler(event)
	}
}

// debugLog logs a debug message if logging is enabled.
func (s *DeviceService) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
