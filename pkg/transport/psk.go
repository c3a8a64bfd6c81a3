package transport

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DefaultPSKLength is the derived key length in bytes.
const DefaultPSKLength = 16

// pskInfo prefixes the HKDF info so derived keys are bound to their use.
const pskInfo = "lwm2m-psk:"

// ErrEmptyMasterSecret is returned when no master secret is configured.
var ErrEmptyMasterSecret = errors.New("master secret is empty")

// DerivePSK derives a per-device pre-shared key from a fleet master secret
// and the client endpoint name with HKDF-SHA256. A length of 0 uses
// DefaultPSKLength.
func DerivePSK(master []byte, endpoint string, length int) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyMasterSecret
	}
	if length <= 0 {
		length = DefaultPSKLength
	}

	r := hkdf.New(sha256.New, master, nil, []byte(pskInfo+endpoint))
	key := make([]byte, length)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive psk: %w", err)
	}
	return key, nil
}
