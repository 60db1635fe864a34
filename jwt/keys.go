package jwtkit

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Pinned public keys let a deployment keep validating tokens when the
// provider's JWKS endpoint is unreachable. Only public key material is
// handled here; bearerkit never loads private keys outside of tests.

const (
	// DefaultPinnedKeysPath is the default directory where External
	// Secrets mounts pinned validation keys.
	DefaultPinnedKeysPath = "/vault/auth"

	pinnedKeysFile = "pinned_keys.json"
	envPinnedKeys  = "PINNED_PUBLIC_KEYS"
)

// ParseRSAPublicPEM parses one PEM-encoded RSA public key.
func ParseRSAPublicPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("empty RSA public key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("failed to decode RSA public key pem")
	}
	switch blk.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(blk.Bytes)
	default:
		key, err := x509.ParsePKIXPublicKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("pem key is not RSA public key")
		}
		return pub, nil
	}
}

// LoadPinnedKeys discovers pinned validation keys from, in priority order:
//
//  1. PINNED_PUBLIC_KEYS env var - JSON map of key id to PEM public key
//  2. <dir>/pinned_keys.json with the same shape (External Secrets mount)
//
// Returns (nil, nil) when neither source is present; pinning is optional.
func LoadPinnedKeys(dir string) (map[string]*rsa.PublicKey, error) {
	if raw := strings.TrimSpace(os.Getenv(envPinnedKeys)); raw != "" {
		keys, err := parsePinnedJSON([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", envPinnedKeys, err)
		}
		return keys, nil
	}

	if dir == "" {
		dir = DefaultPinnedKeysPath
	}
	data, err := os.ReadFile(filepath.Join(dir, pinnedKeysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", pinnedKeysFile, err)
	}
	keys, err := parsePinnedJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pinnedKeysFile, err)
	}
	return keys, nil
}

func parsePinnedJSON(data []byte) (map[string]*rsa.PublicKey, error) {
	var pemMap map[string]string
	if err := json.Unmarshal(data, &pemMap); err != nil {
		return nil, err
	}
	keys := make(map[string]*rsa.PublicKey, len(pemMap))
	for kid, pemStr := range pemMap {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemStr))
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", kid, err)
		}
		keys[kid] = pub
	}
	return keys, nil
}
