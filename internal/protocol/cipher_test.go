package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

var testKey = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
}

func TestNewCipher(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"16 bytes", testKey, false},
		{"empty", nil, true},
		{"15 bytes", testKey[:15], true},
		{"32 bytes", append(append([]byte{}, testKey...), testKey...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCipher(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCipher() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	frames := [][]byte{
		{},
		{0xF7, 0xB8, 0x01, 0x00},
		{0xF7, 0x01, 0x02, 0x09, 0x10, 0x27, 0x00, 0x80, 0x00, 0x80, 0x00, 0x80, 0x00},
		bytes.Repeat([]byte{0x5A}, MaxFrameSize),
	}

	for _, frame := range frames {
		enc := c.Encrypt(frame)
		if len(frame) > 0 && bytes.Equal(enc, frame) {
			t.Errorf("Encrypt(% x) returned plaintext", frame)
		}
		if got := c.Decrypt(enc); !bytes.Equal(got, frame) {
			t.Errorf("Decrypt(Encrypt(x)) = % x, want % x", got, frame)
		}
	}
}

func TestCipherCounterResetsEveryCall(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	frame := []byte{0xF7, 0xB8, 0x01, 0x00}
	first := c.Encrypt(frame)
	second := c.Encrypt(frame)
	if !bytes.Equal(first, second) {
		t.Errorf("ciphertexts differ: % x vs % x", first, second)
	}

	// Reference: AES-CTR with an all-zero counter block.
	block, _ := aes.NewCipher(testKey)
	want := make([]byte, len(frame))
	cipher.NewCTR(block, make([]byte, aes.BlockSize)).XORKeyStream(want, frame)
	if !bytes.Equal(first, want) {
		t.Errorf("Encrypt() = % x, want % x", first, want)
	}
}

func TestCipherDoesNotModifyInput(t *testing.T) {
	c, _ := NewCipher(testKey)
	frame := []byte{0x01, 0x02, 0x03}
	_ = c.Encrypt(frame)
	if !bytes.Equal(frame, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("input modified: % x", frame)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"plain hex", "00112233445566778899aabbccddeeff", false},
		{"upper case with prefix", "0x00112233445566778899AABBCCDDEEFF", false},
		{"spaced", "00 11 22 33 44 55 66 77 88 99 aa bb cc dd ee ff", false},
		{"colons", "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff", false},
		{"too short", "0011", true},
		{"not hex", "zz112233445566778899aabbccddeeff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(key, testKey) {
				t.Errorf("ParseKey() = % x, want % x", key, testKey)
			}
		})
	}
}
