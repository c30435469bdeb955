package ecb

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func TestPadLengths(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 16},
		{15, 16},
		{16, 16},
		{17, 32},
		{32, 32},
	}

	for _, tt := range tests {
		got := Pad(bytes.Repeat([]byte{'a'}, tt.in))
		if len(got) != tt.want {
			t.Errorf("Pad(%d bytes) length = %d, want %d", tt.in, len(got), tt.want)
		}
		for i := tt.in; i < len(got); i++ {
			if got[i] != 0 {
				t.Errorf("Pad(%d bytes)[%d] = %#x, want 0", tt.in, i, got[i])
			}
		}
	}
}

func TestEncryptOutputLength(t *testing.T) {
	key := testKey()
	for _, n := range []int{0, 1, 15, 16, 17, 32} {
		ct, err := Encrypt(bytes.Repeat([]byte{'x'}, n), key)
		if err != nil {
			t.Fatalf("Encrypt(%d bytes) error = %v", n, err)
		}
		if len(ct)%BlockSize != 0 {
			t.Errorf("Encrypt(%d bytes) length %d not block aligned", n, len(ct))
		}
		if len(ct) > n+BlockSize {
			t.Errorf("Encrypt(%d bytes) length %d exceeds %d", n, len(ct), n+BlockSize)
		}
	}
}

func TestEncryptDoesNotModifyInput(t *testing.T) {
	in := []byte("hello")
	if _, err := Encrypt(in, testKey()); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if string(in) != "hello" {
		t.Errorf("input modified: %q", in)
	}
}

func TestRoundTripJSON(t *testing.T) {
	key := testKey()
	messages := []map[string]any{
		{"cmd": "power_on", "token": "abc"},
		{"cmd": "set_target_freq", "percent": "-10", "token": "0123456789abcdef"},
		{"STATUS": "S", "Code": float64(131), "Msg": "API command OK", "When": float64(1690000000)},
		{},
	}

	for _, m := range messages {
		plain, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		ct, err := Encrypt(plain, key)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		pt, err := Decrypt(ct, key)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal(Trim(pt), &got); err != nil {
			t.Fatalf("unmarshal %q: %v", Trim(pt), err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Errorf("round trip = %v, want %v", got, m)
		}
	}
}

func TestECBBlocksAreIndependent(t *testing.T) {
	key := testKey()
	block := bytes.Repeat([]byte{'A'}, BlockSize)
	ct, err := Encrypt(append(append([]byte{}, block...), block...), key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.Equal(ct[:BlockSize], ct[BlockSize:]) {
		t.Error("identical plaintext blocks should encrypt identically in ECB mode")
	}
}

func TestStringRoundTrip(t *testing.T) {
	key := testKey()
	enc, err := EncryptString([]byte(`{"cmd":"restart_btminer"}`), key)
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(enc); err != nil {
		t.Fatalf("not base64: %v", err)
	}

	got, err := DecryptString(enc, key)
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}
	if string(got) != `{"cmd":"restart_btminer"}` {
		t.Errorf("DecryptString() = %q", got)
	}
}

func TestDecryptStringIgnoresLineBreaks(t *testing.T) {
	key := testKey()
	enc, err := EncryptString(bytes.Repeat([]byte("z"), 80), key)
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	wrapped := enc[:20] + "\n" + enc[20:60] + "\r\n" + enc[60:]

	got, err := DecryptString(wrapped, key)
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}
	if len(got) != 80 {
		t.Errorf("DecryptString() length = %d, want 80", len(got))
	}
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nul padding", "{}\x00\x00\x00", "{}"},
		{"stops at first nul", "ab\x00cd\x00", "ab"},
		{"trailing newline", "{}\n", "{}"},
		{"trailing mixed", "{} \r\n\t\x00\x00", "{}"},
		{"leading kept", "  {}", "  {}"},
		{"no padding", "abc", "abc"},
		{"empty", "", ""},
		// Whitespace that belongs to the payload is lost as well.
		{"payload whitespace lost", "value \x00", "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Trim([]byte(tt.in))); got != tt.want {
				t.Errorf("Trim(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeySize(t *testing.T) {
	if _, err := Encrypt([]byte("x"), make([]byte, 16)); !errors.Is(err, ErrKeySize) {
		t.Errorf("Encrypt() with 16-byte key error = %v, want ErrKeySize", err)
	}
	if _, err := Decrypt(make([]byte, 16), make([]byte, 31)); !errors.Is(err, ErrKeySize) {
		t.Errorf("Decrypt() with 31-byte key error = %v, want ErrKeySize", err)
	}
}

func TestDecryptRejectsUnalignedCiphertext(t *testing.T) {
	key := testKey()
	for _, n := range []int{0, 1, 15, 17} {
		if _, err := Decrypt(make([]byte, n), key); !errors.Is(err, ErrCiphertextSize) {
			t.Errorf("Decrypt(%d bytes) error = %v, want ErrCiphertextSize", n, err)
		}
	}
}

func TestDecryptStringBadBase64(t *testing.T) {
	if _, err := DecryptString("not*base64", testKey()); err == nil {
		t.Error("DecryptString() expected error for invalid base64")
	}
}

func TestWrongKeyDoesNotRoundTrip(t *testing.T) {
	ct, err := Encrypt([]byte(`{"cmd":"power_on"}`), testKey())
	if err != nil {
		t.Fatal(err)
	}
	other := bytes.Repeat([]byte{0xAA}, KeySize)
	pt, err := Decrypt(ct, other)
	if err != nil {
		t.Fatal(err)
	}
	if string(Trim(pt)) == `{"cmd":"power_on"}` {
		t.Error("decrypting with a different key should not yield the plaintext")
	}
}
