package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Prefix marks a value encrypted by Cipher
const Prefix = "enc:"

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100000
)

var (
	// ErrNoKey is returned when encrypted data is met without a configured key
	ErrNoKey = errors.New("encryption key is not configured")

	// ErrMalformed is returned for encrypted values that cannot be decoded
	ErrMalformed = errors.New("malformed encrypted value")
)

// Cipher encrypts credentials at rest with AES-GCM, keys derived by PBKDF2.
// Value layout: enc:base64(salt | nonce | ciphertext).
type Cipher struct {
	passphrase []byte
	keys       sync.Map // salt string -> []byte
}

// NewCipher creates a cipher. An empty passphrase keeps values in plain text.
func NewCipher(passphrase string) *Cipher {
	return &Cipher{passphrase: []byte(passphrase)}
}

// Enabled reports whether a key is configured
func (c *Cipher) Enabled() bool {
	return len(c.passphrase) > 0
}

// Encrypt returns the prefixed ciphertext of plaintext, or plaintext itself when disabled
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if !c.Enabled() || plaintext == "" {
		return plaintext, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)

	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Values without Prefix are returned unchanged.
func (c *Cipher) Decrypt(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, Prefix)
	if !ok {
		return value, nil
	}
	if !c.Enabled() {
		return "", ErrNoKey
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltSize {
		return "", ErrMalformed
	}

	gcm, err := c.gcm(raw[:saltSize])
	if err != nil {
		return "", err
	}

	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", ErrMalformed
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plaintext), nil
}

func (c *Cipher) gcm(salt []byte) (cipher.AEAD, error) {
	key, ok := c.keys.Load(string(salt))
	if !ok {
		key, _ = c.keys.LoadOrStore(string(salt), pbkdf2.Key(c.passphrase, salt, iterations, keySize, sha256.New))
	}

	block, err := aes.NewCipher(key.([]byte))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
