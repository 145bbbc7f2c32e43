package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the length of a PowerView home key (AES-128)
const KeySize = 16

// Cipher wraps whole frames with AES-128-CTR under a home key.
//
// The counter block starts at zero for every call, so the same plaintext
// always produces the same ciphertext. Shades expect exactly this.
type Cipher struct {
	block cipher.Block
}

// NewCipher creates a frame cipher. The key must be exactly KeySize bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("home key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt returns the encrypted frame. The input is not modified.
func (c *Cipher) Encrypt(frame []byte) []byte {
	return c.xor(frame)
}

// Decrypt returns the decrypted frame. The input is not modified.
func (c *Cipher) Decrypt(data []byte) []byte {
	return c.xor(data)
}

func (c *Cipher) xor(in []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(in))
	cipher.NewCTR(c.block, iv).XORKeyStream(out, in)
	return out
}

// ParseKey decodes a home key given as hex. Spaces, colons and a 0x prefix
// are accepted.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid home key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("home key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
