package uplink

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt"
)

// DefaultTokenTTL is the lifetime of a device token.
const DefaultTokenTTL = 10 * time.Minute

// ErrNoKey is returned when a token is requested without a signing key.
var ErrNoKey = errors.New("uplink: no signing key")

// LoadKey parses a PEM-encoded EC private key.
func LoadKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("uplink: parse key: %w", err)
	}
	return key, nil
}

// LoadKeyFile reads and parses a PEM-encoded EC private key file.
func LoadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("uplink: read key: %w", err)
	}
	return LoadKey(data)
}

// NewToken signs an ES256 token whose subject is deviceID.
func NewToken(key *ecdsa.PrivateKey, deviceID string, expiresAt time.Time) (string, error) {
	if key == nil {
		return "", ErrNoKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.StandardClaims{
		Subject:   deviceID,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("uplink: sign token: %w", err)
	}
	return signed, nil
}
