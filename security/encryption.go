package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// KeySize is the AES-256 key length the configured secret is fitted to.
const KeySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher seals short secrets (provider session tokens) for storage at rest.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds an AES-GCM cipher. Keys shorter than 32 bytes are zero
// padded, longer keys are truncated.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, errors.New("encryption key not initialized")
	}

	k := make([]byte, KeySize)
	copy(k, key)

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", err
	}

	if len(ciphertext) < c.aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce := ciphertext[:c.aead.NonceSize()]
	ciphertext = ciphertext[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
