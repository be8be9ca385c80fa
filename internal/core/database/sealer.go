package db

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealer encrypts session API keys before they reach the database. The
// session id is bound as additional data so a box cannot move between rows.
type sealer struct {
	aead cipher.AEAD
}

// newSealer derives the key from secret. An empty secret gets a random key,
// which makes stored keys unreadable after a restart, like the cookies.
func newSealer(secret string) (*sealer, error) {
	ikm := []byte(secret)
	if len(ikm) == 0 {
		ikm = make([]byte, 32)
		if _, err := rand.Read(ikm); err != nil {
			return nil, fmt.Errorf("generate credential key: %w", err)
		}
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte("smartdoc session credential")), key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead}, nil
}

// seal returns nil for an empty credential.
func (s *sealer) seal(sessionID, credential string) ([]byte, error) {
	if credential == "" {
		return nil, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(credential)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credential nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(credential), []byte(sessionID)), nil
}

func (s *sealer) open(sessionID string, box []byte) (string, error) {
	if len(box) == 0 {
		return "", nil
	}
	n := s.aead.NonceSize()
	if len(box) < n+s.aead.Overhead() {
		return "", errors.New("sealed credential too short")
	}
	plain, err := s.aead.Open(nil, box[:n], box[n:], []byte(sessionID))
	if err != nil {
		return "", fmt.Errorf("open sealed credential: %w", err)
	}
	return string(plain), nil
}
