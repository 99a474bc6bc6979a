// Package cryptox implements the reversible identifier cipher and the keyed
// password hasher used by the identity core.
//
// The cipher is deliberately deterministic: AES-256-CBC with a fixed key and
// IV taken from process configuration, so identical plaintext always yields
// identical ciphertext. Persisted session rows and token claims are looked up
// by their encrypted form, which depends on this property. The same applies
// to password digests: HMAC-SHA256 with a server-side salt, compared by
// re-hashing the candidate.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/mikhailbahdashych/identity-core/internal/common"
)

// Cipher encrypts and decrypts short identifiers with a fixed key/IV pair.
type Cipher struct {
	key []byte
	iv  []byte
}

// NewCipher validates key and IV sizes (32 and 16 bytes for AES-256-CBC)
// and returns a ready cipher.
func NewCipher(key, iv []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("encryption iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Cipher{key: key, iv: iv}, nil
}

// Encrypt encrypts plaintext with AES-256-CBC and returns a base64 string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt is the inverse of Encrypt. It returns common.ErrorDecryption when
// the input is malformed or was not produced with the same key/IV.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not block-aligned", common.ErrorDecryption)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}

	return string(unpadded), nil
}

// PasswordHasher produces deterministic keyed password digests.
type PasswordHasher struct {
	salt []byte
}

// NewPasswordHasher returns a hasher keyed with the server-side salt.
func NewPasswordHasher(salt []byte) *PasswordHasher {
	return &PasswordHasher{salt: salt}
}

// Hash returns the hex-encoded HMAC-SHA256 digest of password. There is no
// decrypt counterpart: equality is tested by re-hashing the candidate.
func (h *PasswordHasher) Hash(password string) string {
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// Compare re-hashes candidate and compares digests in constant time.
func (h *PasswordHasher) Compare(digest, candidate string) bool {
	return hmac.Equal([]byte(digest), []byte(h.Hash(candidate)))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
