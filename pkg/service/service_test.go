package service

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v3/dpipe"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/connection"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/transport"
	"github.com/mash-protocol/lwm2m-go/pkg/uplink"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

const waitFor = 2 * time.Second

// buildTemperature creates 3303/0 with 5700 sensor value (float,
// observable), 5701 units (static) and 5750 application type.
func buildTemperature(mc model.Config) (*model.Device, error) {
	device := model.NewDevice("urn:dev:test", mc)
	oi := device.CreateObject("3303").CreateObjectInstance()
	if oi == nil {
		return nil, errors.New("instance not created")
	}
	sensor := oi.CreateDynamicResource("5700", "temperature", model.TypeFloat, true, false)
	sensor.SetValue([]byte("21.5"))
	oi.CreateStaticResource("5701", "units", model.TypeString, []byte("Cel"), false)
	app := oi.CreateDynamicResource("5750", "application", model.TypeString, false, false)
	app.SetValue([]byte("lab"))
	return device, nil
}

// pipeServer hands out the server end of every session the service dials.
type pipeServer struct {
	conns chan net.Conn
}

func newPipeDialer(t *testing.T) (*connection.Dialer, *pipeServer) {
	t.Helper()
	srv := &pipeServer{conns: make(chan net.Conn, 4)}
	return &connection.Dialer{
		Address:  "lwm2m.example.com:5683",
		Security: &transport.Security{Mode: transport.ModeNoSec},
		NewAdapter: func(*transport.Security) transport.SecurityAdapter {
			return &transport.PlainAdapter{}
		},
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			client, server := dpipe.Pipe()
			select {
			case srv.conns <- server:
				return client, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		PollInterval: time.Millisecond,
	}, srv
}

func (p *pipeServer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-p.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("service did not dial")
		return nil
	}
}

func testConfig(t *testing.T) (DeviceConfig, *pipeServer) {
	t.Helper()
	dialer, srv := newPipeDialer(t)
	config := DefaultDeviceConfig()
	config.Dialer = dialer
	config.DisableKeepAlive = true
	config.Reconnect.Backoff = connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	return config, srv
}

// eventRecorder collects service events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) has(typ EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func startService(t *testing.T, config DeviceConfig) (*DeviceService, *eventRecorder) {
	t.Helper()
	svc, err := NewDeviceService(buildTemperature, config)
	require.NoError(t, err)
	rec := &eventRecorder{}
	svc.OnEvent(rec.handle)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, rec
}

func request(t *testing.T, code codes.Code, mid int32, path string) *pool.Message {
	t.Helper()
	msg := pool.NewMessage(context.Background())
	msg.SetCode(code)
	msg.SetType(message.Confirmable)
	msg.SetMessageID(mid)
	msg.SetToken(message.Token{0xBE, 0xEF})
	require.NoError(t, msg.SetPath(path))
	return msg
}

func writeMsg(t *testing.T, conn net.Conn, msg *pool.Message) {
	t.Helper()
	data, err := wire.Encode(msg)
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

func readMsg(t *testing.T, conn net.Conn) *pool.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	buf := make([]byte, DefaultReadBufferSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	msg, err := wire.Decode(context.Background(), buf[:n])
	require.NoError(t, err)
	return msg
}

func readBody(t *testing.T, msg *pool.Message) []byte {
	t.Helper()
	b, err := wire.ReadBody(msg)
	require.NoError(t, err)
	return b
}

func TestNewDeviceServiceValidation(t *testing.T) {
	_, err := NewDeviceService(buildTemperature, DefaultDeviceConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	config, _ := testConfig(t)
	config.Uplink = uplink.NewClient(uplink.Config{Address: "localhost:5684"})
	_, err = NewDeviceService(buildTemperature, config)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	config, _ = testConfig(t)
	_, err = NewDeviceService(func(model.Config) (*model.Device, error) {
		return nil, errors.New("boom")
	}, config)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	config, srv := testConfig(t)
	svc, err := NewDeviceService(buildTemperature, config)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, svc.State())
	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)

	rec := &eventRecorder{}
	svc.OnEvent(rec.handle)
	require.NoError(t, svc.Start(context.Background()))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)

	srv.accept(t)
	assert.Eventually(t, func() bool { return rec.has(EventConnected) }, waitFor, 5*time.Millisecond)

	st := svc.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, connection.StateConnected, st.Connection)
	assert.NotEmpty(t, st.ConnectionID)

	require.NoError(t, svc.Stop())
	assert.Equal(t, StateStopped, svc.State())
	assert.ErrorIs(t, svc.Do(context.Background(), func(*model.Device) error { return nil }), ErrNotStarted)
}

func TestRequestIsAnswered(t *testing.T) {
	config, srv := testConfig(t)
	startService(t, config)
	server := srv.accept(t)

	writeMsg(t, server, request(t, codes.GET, 0x1001, "/3303/0/5700"))
	resp := readMsg(t, server)
	assert.Equal(t, codes.Content, resp.Code())
	assert.Equal(t, message.Acknowledgement, resp.Type())
	assert.Equal(t, int32(0x1001), resp.MessageID())
	assert.Equal(t, []byte("21.5"), readBody(t, resp))

	writeMsg(t, server, request(t, codes.GET, 0x1002, "/3303/7"))
	resp = readMsg(t, server)
	assert.Equal(t, codes.NotFound, resp.Code())
}

func TestObservedValueIsNotified(t *testing.T) {
	config, srv := testConfig(t)
	svc, rec := startService(t, config)
	server := srv.accept(t)

	req := request(t, codes.GET, 0x2001, "/3303/0/5700")
	req.SetObserve(wire.ObserveRegister)
	writeMsg(t, server, req)
	resp := readMsg(t, server)
	require.Equal(t, codes.Content, resp.Code())
	seq, err := resp.Options().Observe()
	require.NoError(t, err)

	require.NoError(t, svc.SetResourceValue(context.Background(), model.Path{"3303", "0", "5700"}, []byte("30")))

	note := readMsg(t, server)
	assert.Equal(t, codes.Content, note.Code())
	assert.Equal(t, message.NonConfirmable, note.Type())
	assert.Equal(t, message.Token{0xBE, 0xEF}, note.Token())
	next, err := note.Options().Observe()
	require.NoError(t, err)
	assert.Greater(t, next, seq)
	assert.Equal(t, []byte("30"), readBody(t, note))
	assert.Eventually(t, func() bool { return rec.has(EventNotificationSent) }, waitFor, 5*time.Millisecond)
}

func TestResetCancelsObservation(t *testing.T) {
	config, srv := testConfig(t)
	config.ConfirmableNotifications = true
	svc, rec := startService(t, config)
	server := srv.accept(t)

	req := request(t, codes.GET, 0x3001, "/3303/0/5700")
	req.SetObserve(wire.ObserveRegister)
	writeMsg(t, server, req)
	readMsg(t, server)

	require.NoError(t, svc.SetResourceValue(context.Background(), model.Path{"3303", "0", "5700"}, []byte("25")))
	note := readMsg(t, server)
	require.Equal(t, message.Confirmable, note.Type())

	writeMsg(t, server, wire.BuildReset(context.Background(), note.MessageID()))
	assert.Eventually(t, func() bool { return rec.has(EventObservationCancelled) }, waitFor, 5*time.Millisecond)

	var observed bool
	require.NoError(t, svc.Do(context.Background(), func(d *model.Device) error {
		node, err := d.Lookup(model.Path{"3303", "0", "5700"})
		if err != nil {
			return err
		}
		observed = node.IsUnderObservation()
		return nil
	}))
	assert.False(t, observed)
}

func TestServerPingIsReset(t *testing.T) {
	config, srv := testConfig(t)
	startService(t, config)
	server := srv.accept(t)

	ping := pool.NewMessage(context.Background())
	ping.SetCode(codes.Empty)
	ping.SetType(message.Confirmable)
	ping.SetMessageID(0x4001)
	writeMsg(t, server, ping)

	rst := readMsg(t, server)
	assert.Equal(t, message.Reset, rst.Type())
	assert.Equal(t, int32(0x4001), rst.MessageID())
}

func TestKeepAlivePing(t *testing.T) {
	config, srv := testConfig(t)
	config.DisableKeepAlive = false
	config.KeepAlive = transport.KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    time.Second,
		MaxMissedPongs: 3,
	}
	svc, _ := startService(t, config)
	server := srv.accept(t)

	ping := readMsg(t, server)
	require.Equal(t, codes.Empty, ping.Code())
	require.Equal(t, message.Confirmable, ping.Type())
	writeMsg(t, server, wire.BuildReset(context.Background(), ping.MessageID()))

	assert.Eventually(t, func() bool {
		return !svc.Status().KeepAlive.LastPongTime.IsZero()
	}, waitFor, 5*time.Millisecond)
}

func TestSetResourceValueErrors(t *testing.T) {
	config, srv := testConfig(t)
	svc, err := NewDeviceService(buildTemperature, config)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.SetResourceValue(context.Background(), model.Path{"3303", "0", "5700"}, []byte("1")), ErrNotStarted)

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
	srv.accept(t)

	ctx := context.Background()
	assert.ErrorIs(t, svc.SetResourceValue(ctx, model.Path{"3303", "0", "5701"}, []byte("F")), ErrNotWritable)
	assert.ErrorIs(t, svc.SetResourceValue(ctx, model.Path{"3303", "0"}, []byte("F")), ErrNotWritable)
	assert.ErrorIs(t, svc.SetResourceValue(ctx, model.Path{"3303", "0", "9999"}, []byte("F")), model.ErrNotFound)
}

func TestServerWriteIsPersisted(t *testing.T) {
	config, srv := testConfig(t)
	store := persistence.NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))
	config.StateStore = store
	svc, rec := startService(t, config)
	server := srv.accept(t)

	req := request(t, codes.PUT, 0x5001, "/3303/0/5750")
	req.SetContentFormat(message.TextPlain)
	req.SetBody(bytes.NewReader([]byte("garage")))
	writeMsg(t, server, req)
	assert.Equal(t, codes.Changed, readMsg(t, server).Code())
	assert.Eventually(t, func() bool { return rec.has(EventValueChanged) }, waitFor, 5*time.Millisecond)

	state, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, []byte("garage"), state.Resources["3303/0/5750"].Value)

	require.NoError(t, svc.Stop())

	// A new service restores the written value.
	config2, srv2 := testConfig(t)
	config2.StateStore = store
	svc2, _ := startService(t, config2)
	srv2.accept(t)
	var value []byte
	require.NoError(t, svc2.Do(context.Background(), func(d *model.Device) error {
		node, err := d.Lookup(model.Path{"3303", "0", "5750"})
		if err != nil {
			return err
		}
		value = node.(*model.Resource).Value()
		return nil
	}))
	assert.Equal(t, []byte("garage"), value)
}

func TestLostSessionReconnects(t *testing.T) {
	config, srv := testConfig(t)
	// The server never answers pings, so every session times out.
	config.DisableKeepAlive = false
	config.KeepAlive = transport.KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 1,
	}
	_, rec := startService(t, config)

	first := srv.accept(t)
	ping := readMsg(t, first)
	assert.Equal(t, codes.Empty, ping.Code())

	srv.accept(t)
	assert.Eventually(t, func() bool { return rec.has(EventDisconnected) }, waitFor, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.has(EventReconnecting) }, waitFor, 5*time.Millisecond)
}

func TestRemovePathPrunesUplink(t *testing.T) {
	config, _ := testConfig(t)
	config.Uplink = uplink.NewClient(uplink.Config{Address: "localhost:5684"})
	config.UplinkInstances = []model.Path{{"3303", "0"}, {"3303", "1"}, {"3", "0"}}
	svc, err := NewDeviceService(buildTemperature, config)
	require.NoError(t, err)

	svc.RemovePath(model.Path{"3303", "0"})
	assert.Equal(t, []model.Path{{"3303", "1"}, {"3", "0"}}, svc.config.UplinkInstances)

	svc.RemovePath(model.Path{"3303"})
	assert.Equal(t, []model.Path{{"3", "0"}}, svc.config.UplinkInstances)
}

func TestNotificationPayload(t *testing.T) {
	device, err := buildTemperature(model.Config{})
	require.NoError(t, err)
	oi := device.Object("3303").ObjectInstance(0)
	require.NotNil(t, oi)
	history := oi.CreateDynamicResourceInstance("5800", "history", model.TypeString, false, 2)
	require.NotNil(t, history)
	history.SetValue([]byte("x"))

	cf, payload, err := notificationPayload(oi.Resource("5700"))
	require.NoError(t, err)
	assert.Equal(t, oi.Resource("5700").ContentType(), cf)
	assert.Equal(t, []byte("21.5"), payload)

	cf, payload, err = notificationPayload(oi)
	require.NoError(t, err)
	assert.Equal(t, model.ContentFormatTLV, cf)
	want, err := model.Serialize(oi.Resources())
	require.NoError(t, err)
	assert.Equal(t, want, payload)

	cf, _, err = notificationPayload(device.Object("3303"))
	require.NoError(t, err)
	assert.Equal(t, model.ContentFormatTLV, cf)

	cf, _, err = notificationPayload(oi.Resource("5800"))
	require.NoError(t, err)
	assert.Equal(t, model.ContentFormatTLV, cf)
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, hasPrefix(model.Path{"3", "0", "1"}, model.Path{"3", "0"}))
	assert.True(t, hasPrefix(model.Path{"3"}, model.Path{"3"}))
	assert.False(t, hasPrefix(model.Path{"3"}, model.Path{"3", "0"}))
	assert.False(t, hasPrefix(model.Path{"30", "0"}, model.Path{"3"}))
}
