package uplink

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/farshidtz/senml/v2"
	"github.com/farshidtz/senml/v2/codec"
	"github.com/golang-jwt/jwt"
	piondtls "github.com/pion/dtls/v2"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/timer"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newInstance(t *testing.T) *model.ObjectInstance {
	t.Helper()
	d := model.NewDevice("urn:dev:uplink", model.Config{Timers: timer.NewManual()})
	oi := d.CreateObject("3303").CreateObjectInstance()
	require.NotNil(t, oi)

	oi.CreateStaticResource("5701", "units", model.TypeString, []byte("Cel"), false)
	temp := oi.CreateDynamicResource("5700", "value", model.TypeFloat, true, false)
	temp.SetValue([]byte("21.5"))
	on := oi.CreateDynamicResource("5850", "on", model.TypeBoolean, false, false)
	on.SetValue([]byte("1"))
	oi.CreateDynamicResource("5750", "name", model.TypeString, false, false)
	return oi
}

// resolved maps fully qualified record names to records, applying base names.
func resolved(pack senml.Pack) map[string]senml.Record {
	out := make(map[string]senml.Record)
	base := ""
	for _, r := range pack {
		if r.BaseName != "" {
			base = r.BaseName
		}
		out[base+r.Name] = r
	}
	return out
}

func TestLoadKey(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	loaded, err := LoadKey(pemBytes)
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))

	_, err = LoadKey([]byte("not a key"))
	assert.Error(t, err)
}

func TestNewToken(t *testing.T) {
	key := newKey(t)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	signed, err := NewToken(key, "dev-1", expires)
	require.NoError(t, err)

	claims := &jwt.StandardClaims{}
	tok, err := jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (interface{}, error) {
		assert.Equal(t, jwt.SigningMethodES256, tok.Method)
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "dev-1", claims.Subject)
	assert.Equal(t, expires.Unix(), claims.ExpiresAt)
}

func TestNewTokenWithoutKey(t *testing.T) {
	_, err := NewToken(nil, "dev-1", time.Now())
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestBuildPack(t *testing.T) {
	oi := newInstance(t)
	at := time.UnixMilli(1_700_000_000_500)

	pack, err := BuildPack(oi, at)
	require.NoError(t, err)
	require.Len(t, pack, 3)

	data, err := EncodePack(pack)
	require.NoError(t, err)
	decoded, err := codec.DecodeCBOR(data)
	require.NoError(t, err)

	records := resolved(decoded)
	require.Contains(t, records, "3303/0/5700")
	require.NotNil(t, records["3303/0/5700"].Value)
	assert.InDelta(t, 21.5, *records["3303/0/5700"].Value, 1e-9)

	require.Contains(t, records, "3303/0/5701")
	assert.Equal(t, "Cel", records["3303/0/5701"].StringValue)

	require.Contains(t, records, "3303/0/5850")
	require.NotNil(t, records["3303/0/5850"].BoolValue)
	assert.True(t, *records["3303/0/5850"].BoolValue)

	assert.NotContains(t, records, "3303/0/5750")
}

func TestBuildPackMultipleInstances(t *testing.T) {
	d := model.NewDevice("urn:dev:uplink", model.Config{Timers: timer.NewManual()})
	oi := d.CreateObject("3").CreateObjectInstance()
	oi.CreateDynamicResourceInstance("7", "voltage", model.TypeInteger, false, 0).SetValue([]byte("3300"))
	oi.CreateDynamicResourceInstance("7", "voltage", model.TypeInteger, false, 1).SetValue([]byte("5000"))

	pack, err := BuildPack(oi, time.Now())
	require.NoError(t, err)

	records := resolved(pack)
	require.Contains(t, records, "3/0/7/0")
	require.Contains(t, records, "3/0/7/1")
	assert.InDelta(t, 5000, *records["3/0/7/1"].Value, 0)
}

func TestBuildPackEmpty(t *testing.T) {
	d := model.NewDevice("urn:dev:uplink", model.Config{Timers: timer.NewManual()})
	oi := d.CreateObject("3").CreateObjectInstance()

	_, err := BuildPack(oi, time.Now())
	assert.ErrorIs(t, err, ErrEmptyPack)
}

type post struct {
	path    string
	format  message.MediaType
	payload []byte
}

type fakeConn struct {
	posts  []post
	code   codes.Code
	err    error
	closed bool
}

func (f *fakeConn) Post(ctx context.Context, path string, cf message.MediaType, payload io.ReadSeeker, _ ...message.Option) (*pool.Message, error) {
	body, _ := io.ReadAll(payload)
	f.posts = append(f.posts, post{path: path, format: cf, payload: body})
	if f.err != nil {
		return nil, f.err
	}
	resp := pool.NewMessage(ctx)
	resp.SetCode(f.code)
	return resp, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestClient(t *testing.T, conn *fakeConn) *Client {
	t.Helper()
	return NewClient(Config{
		Address:  "coap.example.com:5684",
		DeviceID: "dev-1",
		Key:      newKey(t),
		Dial: func(context.Context, string, *piondtls.Config) (Conn, error) {
			return conn, nil
		},
	})
}

func TestClientConnectAndPublish(t *testing.T) {
	conn := &fakeConn{code: codes.Created}
	c := newTestClient(t, conn)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.Connected())
	require.Len(t, conn.posts, 1)
	assert.Equal(t, DefaultAuthPath, conn.posts[0].path)
	assert.Equal(t, message.TextPlain, conn.posts[0].format)

	require.NoError(t, c.Publish(ctx, newInstance(t)))
	require.Len(t, conn.posts, 2)
	assert.Equal(t, DefaultDataPath, conn.posts[1].path)
	assert.Equal(t, message.AppCBOR, conn.posts[1].format)

	decoded, err := codec.DecodeCBOR(conn.posts[1].payload)
	require.NoError(t, err)
	assert.Len(t, decoded, 3)

	require.NoError(t, c.Close())
	assert.True(t, conn.closed)
	assert.False(t, c.Connected())
}

func TestClientAuthRejected(t *testing.T) {
	conn := &fakeConn{code: codes.Unauthorized}
	c := newTestClient(t, conn)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, conn.closed)
	assert.False(t, c.Connected())
}

func TestClientPublishWithoutConnect(t *testing.T) {
	c := newTestClient(t, &fakeConn{code: codes.Created})

	err := c.Publish(context.Background(), newInstance(t))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientPublishError(t *testing.T) {
	conn := &fakeConn{code: codes.Created}
	c := newTestClient(t, conn)
	require.NoError(t, c.Connect(context.Background()))

	conn.err = errors.New("boom")
	err := c.Publish(context.Background(), newInstance(t))
	assert.Error(t, err)
}
