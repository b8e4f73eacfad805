package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateKeyPair creates a new ed25519 key pair.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SaveKeyPair writes both keys as hex files.
func SaveKeyPair(pub ed25519.PublicKey, priv ed25519.PrivateKey, pubPath, privPath string) error {
	for _, p := range []string{pubPath, privPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0600); err != nil {
		return err
	}
	return os.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0600)
}

func readHexKey(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("%s: invalid key size %d", path, len(key))
	}
	return key, nil
}

// LoadPrivateKey loads a hex encoded ed25519 private key.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	key, err := readHexKey(path, ed25519.PrivateKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(key), nil
}

// LoadPublicKey loads a hex encoded ed25519 public key.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	key, err := readHexKey(path, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(key), nil
}

// LoadKeyPair loads both halves and checks they belong together.
func LoadKeyPair(pubPath, privPath string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	priv, err := LoadPrivateKey(privPath)
	if err != nil {
		return nil, nil, err
	}
	pub, err := LoadPublicKey(pubPath)
	if err != nil {
		return nil, nil, err
	}
	if !pub.Equal(priv.Public()) {
		return nil, nil, errors.New("public key does not match private key")
	}
	return pub, priv, nil
}

// SignData signs data and returns the hex signature.
func SignData(priv ed25519.PrivateKey, data []byte) string {
	return hex.EncodeToString(ed25519.Sign(priv, data))
}

// VerifySignature checks a hex signature of data.
func VerifySignature(pub ed25519.PublicKey, data []byte, sigHex string) (bool, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}

// VerifySignatureFromHex is VerifySignature with a hex encoded public key.
func VerifySignatureFromHex(pubHex string, data []byte, sigHex string) (bool, error) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return false, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, errors.New("invalid public key size")
	}
	return VerifySignature(ed25519.PublicKey(pub), data, sigHex)
}
