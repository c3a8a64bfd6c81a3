package uplink

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/farshidtz/senml/v2"
	piondtls "github.com/pion/dtls/v2"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Default request paths.
const (
	DefaultAuthPath = "/auth/jwt"
	DefaultDataPath = "/msg/d2c/raw"
)

// Errors returned by the client.
var (
	ErrNotConnected = errors.New("uplink: not connected")
	ErrRejected     = errors.New("uplink: request rejected")
)

// Conn is the part of a CoAP client connection the uplink uses.
type Conn interface {
	Post(ctx context.Context, path string, contentFormat message.MediaType, payload io.ReadSeeker, opts ...message.Option) (*pool.Message, error)
	Close() error
}

// DialFunc opens a CoAP connection to address.
type DialFunc func(ctx context.Context, address string, cfg *piondtls.Config) (Conn, error)

// Config configures a Client.
type Config struct {
	// Address is the host:port of the cloud CoAP endpoint.
	Address string

	// DeviceID is the token subject.
	DeviceID string

	// Key signs the device token.
	Key *ecdsa.PrivateKey

	// TokenTTL defaults to DefaultTokenTTL.
	TokenTTL time.Duration

	// AuthPath defaults to DefaultAuthPath.
	AuthPath string

	// DataPath defaults to DefaultDataPath.
	DataPath string

	// DTLS is the handshake configuration. Nil skips server verification
	// and only sends a connection id.
	DTLS *piondtls.Config

	// Dial overrides the go-coap DTLS dialer.
	Dial DialFunc

	// Logger receives connection events. Nil disables logging.
	Logger *slog.Logger
}

// Client publishes SenML packs over an authenticated CoAP connection.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn Conn
	now  func() time.Time
}

// NewClient creates an unconnected client.
func NewClient(cfg Config) *Client {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.AuthPath == "" {
		cfg.AuthPath = DefaultAuthPath
	}
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath
	}
	if cfg.DTLS == nil {
		cfg.DTLS = &piondtls.Config{
			InsecureSkipVerify:    true,
			ConnectionIDGenerator: piondtls.OnlySendCIDGenerator(),
		}
	}
	if cfg.Dial == nil {
		cfg.Dial = dialDTLS
	}
	return &Client{cfg: cfg, now: time.Now}
}

func dialDTLS(_ context.Context, address string, cfg *piondtls.Config) (Conn, error) {
	return dtls.Dial(address, cfg)
}

// Connect dials the endpoint and posts a fresh device token.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	token, err := NewToken(c.cfg.Key, c.cfg.DeviceID, c.now().Add(c.cfg.TokenTTL))
	if err != nil {
		return err
	}
	conn, err := c.cfg.Dial(ctx, c.cfg.Address, c.cfg.DTLS)
	if err != nil {
		return fmt.Errorf("uplink: dial %s: %w", c.cfg.Address, err)
	}
	resp, err := conn.Post(ctx, c.cfg.AuthPath, message.TextPlain, strings.NewReader(token))
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("uplink: authenticate: %w", err)
	}

	c.conn = conn
	c.debug("uplink connected", "address", c.cfg.Address, "device", c.cfg.DeviceID)
	return nil
}

// Publish posts a SenML CBOR snapshot of oi. The tree is read on the
// calling goroutine.
func (c *Client) Publish(ctx context.Context, oi *model.ObjectInstance) error {
	pack, err := BuildPack(oi, c.now())
	if err != nil {
		return err
	}
	if err := c.PublishPack(ctx, pack); err != nil {
		return fmt.Errorf("uplink: publish %s: %w", oi.Path(), err)
	}
	return nil
}

// PublishPack posts an already built pack.
func (c *Client) PublishPack(ctx context.Context, pack senml.Pack) error {
	data, err := EncodePack(pack)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	resp, err := conn.Post(ctx, c.cfg.DataPath, message.AppCBOR, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	c.debug("uplink published", "records", len(pack), "bytes", len(data))
	return nil
}

// Connected reports whether Connect succeeded and Close was not called.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func checkResponse(resp *pool.Message) error {
	if resp == nil {
		return ErrRejected
	}
	code := resp.Code()
	if code >= codes.Created && code < codes.BadRequest {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRejected, code)
}

func (c *Client) debug(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}
