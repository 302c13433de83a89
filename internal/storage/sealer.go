package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sealer encrypts snapshot payloads with AES-GCM under a 32-byte
// master key.
type Sealer struct {
	key []byte
}

// NewSealer resolves the master key from the LOGBOOK_MASTER_KEY
// environment variable, then the key file, generating and saving a new
// key (mode 0600) if neither exists. Returns true when a key was
// generated.
func NewSealer(keyPath string) (*Sealer, bool, error) {
	if envKey := os.Getenv("LOGBOOK_MASTER_KEY"); envKey != "" {
		key, err := hex.DecodeString(envKey)
		if err == nil && len(key) == 32 {
			return &Sealer{key: key}, false, nil
		}
	}

	if _, err := os.Stat(keyPath); err == nil {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, false, fmt.Errorf("read key file: %w", err)
		}
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err == nil && len(key) == 32 {
			return &Sealer{key: key}, false, nil
		}
		return nil, false, fmt.Errorf("key file %s is not a 32-byte hex key", keyPath)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, false, fmt.Errorf("generate master key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, false, fmt.Errorf("save master key to %s: %w", keyPath, err)
	}
	return &Sealer{key: key}, true, nil
}

// Seal encrypts plaintext and returns nonce + ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
