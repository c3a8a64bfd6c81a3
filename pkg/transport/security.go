package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/dtls/v2"
)

// Default LwM2M ports.
const (
	DefaultPort       = 5683
	DefaultSecurePort = 5684
)

// Status codes returned by SecurityAdapter methods.
const (
	StatusOK             = 0
	StatusError          = -1
	StatusWantRead       = -2
	StatusWantWrite      = -3
	StatusClosed         = -4
	StatusNotInitialized = -5
)

// StatusText returns a name for a status code.
func StatusText(code int) string {
	switch {
	case code >= 0:
		return "OK"
	case code == StatusError:
		return "ERROR"
	case code == StatusWantRead:
		return "WANT_READ"
	case code == StatusWantWrite:
		return "WANT_WRITE"
	case code == StatusClosed:
		return "CLOSED"
	case code == StatusNotInitialized:
		return "NOT_INITIALIZED"
	default:
		return "UNKNOWN"
	}
}

// Security errors.
var (
	ErrNoSecurity      = errors.New("security configuration is required")
	ErrMissingPSK      = errors.New("PSK identity and key are required")
	ErrMissingCert     = errors.New("client certificate is required")
	ErrUnsupportedMode = errors.New("security mode not supported by adapter")
	ErrNoPeerCert      = errors.New("no certificates presented")
	ErrServerMismatch  = errors.New("server name mismatch")
)

// SecurityAdapter secures a connected datagram socket.
type SecurityAdapter interface {
	// Init validates sec and prepares the adapter.
	Init(sec *Security) int

	// StartConnectingNonBlocking starts the handshake on conn. It returns
	// StatusWantRead while the handshake runs.
	StartConnectingNonBlocking(conn net.Conn) int

	// ContinueConnecting polls the handshake.
	ContinueConnecting() int

	// SendMessage sends one datagram and returns the bytes written.
	SendMessage(data []byte) int

	// Read reads one datagram into buf and returns its length.
	Read(buf []byte) int

	// Reset tears down the connection. Init state is kept.
	Reset()
}

// Mode selects the security mode.
type Mode uint8

const (
	ModePSK Mode = iota
	ModeCertificate
	ModeNoSec
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePSK:
		return "psk"
	case ModeCertificate:
		return "certificate"
	case ModeNoSec:
		return "nosec"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "psk", "":
		return ModePSK, nil
	case "certificate", "cert", "x509":
		return ModeCertificate, nil
	case "nosec", "none":
		return ModeNoSec, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Security holds the credentials for one server account.
type Security struct {
	Mode Mode

	// PSK mode.
	PSKIdentity string
	PSK         []byte

	// Certificate mode.
	Certificate tls.Certificate
	RootCAs     *x509.CertPool

	// ServerName is matched against the server certificate CN or DNS SANs.
	ServerName string

	// InsecureSkipVerify disables server certificate verification.
	// Only for testing.
	InsecureSkipVerify bool

	// ConnectionID requests a DTLS connection id from the server so that
	// sessions survive NAT rebinding.
	ConnectionID bool
}

// Validate checks that the credentials for Mode are present.
func (s *Security) Validate() error {
	if s == nil {
		return ErrNoSecurity
	}
	switch s.Mode {
	case ModePSK:
		if s.PSKIdentity == "" || len(s.PSK) == 0 {
			return ErrMissingPSK
		}
	case ModeCertificate:
		if len(s.Certificate.Certificate) == 0 {
			return ErrMissingCert
		}
	case ModeNoSec:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, s.Mode)
	}
	return nil
}

// newDTLSConfig builds the pion configuration for sec.
func newDTLSConfig(sec *Security) (*dtls.Config, error) {
	if err := sec.Validate(); err != nil {
		return nil, err
	}

	cfg := &dtls.Config{
		ExtendedMasterSecret: dtls.RequestExtendedMasterSecret,
		FlightInterval:       time.Second,
	}
	if sec.ConnectionID {
		cfg.ConnectionIDGenerator = dtls.OnlySendCIDGenerator()
	}

	switch sec.Mode {
	case ModePSK:
		key := append([]byte(nil), sec.PSK...)
		cfg.PSK = func([]byte) ([]byte, error) { return key, nil }
		cfg.PSKIdentityHint = []byte(sec.PSKIdentity)
		cfg.CipherSuites = []dtls.CipherSuiteID{
			dtls.TLS_PSK_WITH_AES_128_CCM_8,
			dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
		}
	case ModeCertificate:
		cfg.Certificates = []tls.Certificate{sec.Certificate}
		cfg.CipherSuites = []dtls.CipherSuiteID{
			dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
			dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		}
		cfg.ServerName = sec.ServerName
		// Hostname checks do not apply to LwM2M server identities; the chain
		// and name are checked in verifyPeer instead.
		cfg.InsecureSkipVerify = true
		if !sec.InsecureSkipVerify {
			cfg.VerifyPeerCertificate = verifyPeer(sec.RootCAs, sec.ServerName)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, sec.Mode)
	}
	return cfg, nil
}

// verifyPeer checks the server chain against roots and, when name is set,
// the certificate CN or DNS SANs against name.
func verifyPeer(roots *x509.CertPool, name string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoPeerCert
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}

		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			ic, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			intermediates.AddCert(ic)
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   time.Now(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		}
		if _, err := cert.Verify(opts); err != nil {
			return fmt.Errorf("certificate chain verification failed: %w", err)
		}

		if name == "" || cert.Subject.CommonName == name {
			return nil
		}
		for _, dns := range cert.DNSNames {
			if dns == name {
				return nil
			}
		}
		return fmt.Errorf("%w: expected %s, got %s", ErrServerMismatch, name, cert.Subject.CommonName)
	}
}

// LoadCertificate loads a PEM certificate and key pair.
func LoadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load certificate: %w", err)
	}
	return cert, nil
}

// LoadCertPool builds a pool from PEM-encoded CA certificates.
func LoadCertPool(pem []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no CA certificates found")
	}
	return pool, nil
}
