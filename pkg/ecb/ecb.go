package ecb

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// BlockSize is the AES block size.
const BlockSize = aes.BlockSize

// KeySize is the required key size (AES-256).
const KeySize = 32

// Cipher errors.
var (
	// ErrKeySize indicates a key that is not 32 bytes long.
	ErrKeySize = errors.New("key must be 32 bytes")

	// ErrCiphertextSize indicates ciphertext that is empty or not block aligned.
	ErrCiphertextSize = errors.New("ciphertext is not a multiple of the block size")
)

// trailingCutset is stripped after the NUL cut.
const trailingCutset = " \t\r\n"

var lineBreaks = strings.NewReplacer("\n", "", "\r", "")

// Pad appends NUL bytes up to the next block boundary.
// Already aligned input (including empty input) is returned unchanged.
func Pad(b []byte) []byte {
	rem := len(b) % BlockSize
	if rem == 0 {
		return b
	}
	out := make([]byte, len(b), len(b)+BlockSize-rem)
	copy(out, b)
	return append(out, make([]byte, BlockSize-rem)...)
}

// Trim truncates decrypted plaintext at the first NUL byte and strips
// trailing spaces, tabs and line breaks.
//
// Payloads that legitimately end in whitespace lose it; devices never
// send such payloads and the behavior must match theirs.
func Trim(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return bytes.TrimRight(b, trailingCutset)
}

// Encrypt pads plaintext and encrypts it block by block.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes init: %w", err)
	}

	padded := Pad(plaintext)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		block.Encrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out, nil
}

// Decrypt decrypts ciphertext block by block. The result still carries the
// NUL padding; see Trim.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextSize, len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes init: %w", err)
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += BlockSize {
		block.Decrypt(out[i:i+BlockSize], ciphertext[i:i+BlockSize])
	}
	return out, nil
}

// EncryptString encrypts plaintext and returns it base64 encoded.
func EncryptString(plaintext, key []byte) (string, error) {
	ct, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptString decodes base64 ciphertext, decrypts it and trims the result.
// Line breaks inside the base64 text are ignored.
func DecryptString(encoded string, key []byte) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(lineBreaks.Replace(encoded))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	pt, err := Decrypt(ct, key)
	if err != nil {
		return nil, err
	}
	return Trim(pt), nil
}
