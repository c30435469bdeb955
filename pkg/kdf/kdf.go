package kdf

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/GehirnInc/crypt/md5_crypt"
)

// Derivation constants.
const (
	// KeySize is the size of the derived AES-256 key in bytes.
	KeySize = sha256.Size

	// MaxSaltLength is the longest salt MD5-crypt accepts.
	MaxSaltLength = 8

	// md5Prefix is the MD5-crypt identifier.
	md5Prefix = "$1$"
)

// ErrSaltFormat is returned (wrapped in a FormatError) for salts that do not
// follow the "$<digit>$<chars>$" convention.
var ErrSaltFormat = errors.New("salt format is not correct")

// saltPattern captures the salt characters of a "$<id>$<salt>$" string.
var saltPattern = regexp.MustCompile(`^\s*\$(\d+)\$([\w./]*)\$`)

// FormatError reports a salt string that cannot be used for derivation.
// It indicates a local bug or an unsupported firmware, not a network
// condition.
type FormatError struct {
	Salt   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %q", ErrSaltFormat, e.Salt)
	}
	return fmt.Sprintf("%v: %q: %s", ErrSaltFormat, e.Salt, e.Reason)
}

// Unwrap allows errors.Is(err, ErrSaltFormat).
func (e *FormatError) Unwrap() error {
	return ErrSaltFormat
}

// Salts holds the server-supplied inputs of a token handshake.
type Salts struct {
	Salt    string
	NewSalt string
	Time    string
}

// Credentials is the result of a successful derivation.
type Credentials struct {
	// Token is sent in the "token" field of encrypted commands.
	Token string

	// Key is the 32-byte AES-256 key for the session.
	Key []byte
}

// Derive runs MD5-crypt over secret with the salt characters captured from
// salt and returns the fourth "$"-separated field of the encoded result.
func Derive(secret, salt string) (string, error) {
	m := saltPattern.FindStringSubmatch(salt)
	if m == nil {
		return "", &FormatError{Salt: salt}
	}
	chars := m[2]
	if len(chars) > MaxSaltLength {
		return "", &FormatError{Salt: salt, Reason: fmt.Sprintf("longer than %d characters", MaxSaltLength)}
	}
	if strings.Contains(chars, "_") {
		return "", &FormatError{Salt: salt, Reason: "invalid character"}
	}

	encoded, err := md5_crypt.New().Generate([]byte(secret), []byte(md5Prefix+chars+"$"))
	if err != nil {
		return "", fmt.Errorf("md5-crypt: %w", err)
	}

	fields := strings.Split(encoded, "$")
	if len(fields) < 4 {
		return "", fmt.Errorf("md5-crypt: unexpected output %q", encoded)
	}
	return fields[3], nil
}

// DeriveSession derives the session token and cipher key from the admin
// password and the server salts.
func DeriveSession(secret string, salts Salts) (Credentials, error) {
	intermediate, err := Derive(secret, md5Prefix+salts.Salt+"$")
	if err != nil {
		return Credentials{}, err
	}

	token, err := Derive(intermediate+salts.Time, md5Prefix+salts.NewSalt+"$")
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Token: token,
		Key:   SessionKey(intermediate),
	}, nil
}

// SessionKey returns the cipher key for an intermediate secret: the hex
// SHA-256 digest decoded back to raw bytes, which is the digest itself.
func SessionKey(intermediate string) []byte {
	sum := sha256.Sum256([]byte(intermediate))
	return sum[:]
}
