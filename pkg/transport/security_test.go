package transport

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSigned creates a CA-capable server certificate for name.
func selfSigned(t *testing.T, name string, dnsNames ...string) (tls.Certificate, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		DNSNames:              dnsNames,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, pemBytes
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{StatusOK, "OK"},
		{42, "OK"},
		{StatusError, "ERROR"},
		{StatusWantRead, "WANT_READ"},
		{StatusWantWrite, "WANT_WRITE"},
		{StatusClosed, "CLOSED"},
		{StatusNotInitialized, "NOT_INITIALIZED"},
		{-99, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.code); got != tt.want {
			t.Errorf("StatusText(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"psk", ModePSK, false},
		{"", ModePSK, false},
		{"certificate", ModeCertificate, false},
		{"x509", ModeCertificate, false},
		{"nosec", ModeNoSec, false},
		{"rpk", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, "unknown", got.String())
		})
	}
}

func TestSecurityValidate(t *testing.T) {
	cert, _ := selfSigned(t, "lwm2m.example.com")

	tests := []struct {
		name string
		sec  *Security
		want error
	}{
		{"nil", nil, ErrNoSecurity},
		{"psk ok", &Security{Mode: ModePSK, PSKIdentity: "dev-1", PSK: []byte{1}}, nil},
		{"psk missing identity", &Security{Mode: ModePSK, PSK: []byte{1}}, ErrMissingPSK},
		{"psk missing key", &Security{Mode: ModePSK, PSKIdentity: "dev-1"}, ErrMissingPSK},
		{"cert ok", &Security{Mode: ModeCertificate, Certificate: cert}, nil},
		{"cert missing", &Security{Mode: ModeCertificate}, ErrMissingCert},
		{"nosec", &Security{Mode: ModeNoSec}, nil},
		{"bad mode", &Security{Mode: Mode(9)}, ErrUnsupportedMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sec.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNewDTLSConfigPSK(t *testing.T) {
	psk := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	cfg, err := newDTLSConfig(&Security{
		Mode:         ModePSK,
		PSKIdentity:  "urn:imei:123",
		PSK:          psk,
		ConnectionID: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("urn:imei:123"), cfg.PSKIdentityHint)
	assert.Contains(t, cfg.CipherSuites, dtls.TLS_PSK_WITH_AES_128_CCM_8)
	assert.NotNil(t, cfg.ConnectionIDGenerator)

	// The callback must not alias the caller's slice.
	psk[0] = 0
	key, err := cfg.PSK(nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0xDE), key[0])
}

func TestNewDTLSConfigCertificate(t *testing.T) {
	cert, _ := selfSigned(t, "lwm2m.example.com")

	cfg, err := newDTLSConfig(&Security{Mode: ModeCertificate, Certificate: cert, ServerName: "lwm2m.example.com"})
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.VerifyPeerCertificate)
	assert.Nil(t, cfg.ConnectionIDGenerator)

	cfg, err = newDTLSConfig(&Security{Mode: ModeCertificate, Certificate: cert, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.Nil(t, cfg.VerifyPeerCertificate)
}

func TestNewDTLSConfigNoSec(t *testing.T) {
	_, err := newDTLSConfig(&Security{Mode: ModeNoSec})
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestVerifyPeer(t *testing.T) {
	cert, pemBytes := selfSigned(t, "server", "lwm2m.example.com")
	roots, err := LoadCertPool(pemBytes)
	require.NoError(t, err)
	raw := cert.Certificate

	t.Run("CN match", func(t *testing.T) {
		assert.NoError(t, verifyPeer(roots, "server")(raw, nil))
	})
	t.Run("SAN match", func(t *testing.T) {
		assert.NoError(t, verifyPeer(roots, "lwm2m.example.com")(raw, nil))
	})
	t.Run("no name", func(t *testing.T) {
		assert.NoError(t, verifyPeer(roots, "")(raw, nil))
	})
	t.Run("name mismatch", func(t *testing.T) {
		err := verifyPeer(roots, "other.example.com")(raw, nil)
		assert.True(t, errors.Is(err, ErrServerMismatch), "got %v", err)
	})
	t.Run("unknown root", func(t *testing.T) {
		_, otherPEM := selfSigned(t, "other")
		otherRoots, err := LoadCertPool(otherPEM)
		require.NoError(t, err)
		assert.Error(t, verifyPeer(otherRoots, "server")(raw, nil))
	})
	t.Run("no certificates", func(t *testing.T) {
		assert.ErrorIs(t, verifyPeer(roots, "server")(nil, nil), ErrNoPeerCert)
	})
}

func TestLoadCertPoolRejectsGarbage(t *testing.T) {
	_, err := LoadCertPool([]byte("not a certificate"))
	assert.Error(t, err)
}

func TestDerivePSK(t *testing.T) {
	master := []byte("fleet-master-secret")

	a, err := DerivePSK(master, "urn:dev:1", 0)
	require.NoError(t, err)
	assert.Len(t, a, DefaultPSKLength)

	again, err := DerivePSK(master, "urn:dev:1", 0)
	require.NoError(t, err)
	assert.Equal(t, a, again, "derivation must be deterministic")

	b, err := DerivePSK(master, "urn:dev:2", 0)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, b), "endpoints must get distinct keys")

	long, err := DerivePSK(master, "urn:dev:1", 32)
	require.NoError(t, err)
	assert.Len(t, long, 32)
	assert.Equal(t, a, long[:DefaultPSKLength], "HKDF output is a prefix stream")

	_, err = DerivePSK(nil, "urn:dev:1", 0)
	assert.ErrorIs(t, err, ErrEmptyMasterSecret)
}
