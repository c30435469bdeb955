package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// UnreachableSentinel is the raw, non-JSON line some firmware sends when the
// API daemon cannot reach the miner process.
const UnreachableSentinel = "Socket connect failed: Connection refused"

// ErrNotObject indicates a reply that is valid JSON but not an object.
var ErrNotObject = errors.New("reply is not a JSON object")

// IsUnreachableSentinel reports whether the trimmed raw reply equals
// UnreachableSentinel.
func IsUnreachableSentinel(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == UnreachableSentinel
}

// Decode parses a single JSON object. Numbers are kept as json.Number so
// payloads are returned without loss.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode reply: trailing data")
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return m, nil
}

// Encode serializes a reply or request object.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ToInt converts a decoded JSON value to an int. Integral floats, json.Number
// and numeric strings are accepted.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// ToFloat converts a decoded JSON value to a float64. json.Number and
// numeric strings are accepted.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
