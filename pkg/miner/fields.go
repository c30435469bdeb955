package miner

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// Lookup errors, wrapped in a MalformedResponse *wire.Error.
var (
	ErrMissingKey = errors.New("missing key")
	ErrWrongType  = errors.New("unexpected value type")
)

// KeyError names the key a reply lacked or carried with the wrong type.
type KeyError struct {
	Section string
	Key     string
	Err     error
}

func (e *KeyError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Key)
	}
	return fmt.Sprintf("%v: %s.%q", e.Err, e.Section, e.Key)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// fields reads typed values out of one reply object and remembers the
// first failure.
type fields struct {
	section string
	m       map[string]any
	err     error
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = &KeyError{Section: f.section, Key: key, Err: err}
	}
}

func (f *fields) lookup(key string, required bool) (any, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		if required {
			f.fail(key, ErrMissingKey)
		}
		return nil, false
	}
	return v, true
}

func (f *fields) text(key string, required bool) string {
	v, ok := f.lookup(key, required)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		// json.Number
		return s.String()
	}
	f.fail(key, ErrWrongType)
	return ""
}

func (f *fields) number(key string, required bool) float64 {
	v, ok := f.lookup(key, required)
	if !ok {
		return 0
	}
	n, ok := wire.ToFloat(v)
	if !ok {
		f.fail(key, ErrWrongType)
	}
	return n
}

func (f *fields) integer(key string, required bool) int64 {
	v, ok := f.lookup(key, required)
	if !ok {
		return 0
	}
	n, ok := wire.ToInt(v)
	if !ok {
		f.fail(key, ErrWrongType)
	}
	return int64(n)
}

func (f *fields) flag(key string, required bool) bool {
	v, ok := f.lookup(key, required)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch b {
		case "true", "True", "enable", "enabled":
			return true
		case "false", "False", "disable", "disabled":
			return false
		}
	}
	f.fail(key, ErrWrongType)
	return false
}

// malformed wraps a lookup failure for command.
func malformed(command string, payload map[string]any, err error) error {
	return &wire.Error{Kind: wire.KindMalformedResponse, Command: command, Response: payload, Err: err}
}

// section returns payload[key] as an object.
func section(command string, payload map[string]any, key string) (*fields, error) {
	m, ok := payload[key].(map[string]any)
	if !ok {
		return nil, malformed(command, payload, &KeyError{Key: key, Err: missingOrWrong(payload, key)})
	}
	return &fields{section: key, m: m}, nil
}

// list returns payload[key] as a list of objects.
func list(command string, payload map[string]any, key string) ([]*fields, error) {
	items, ok := payload[key].([]any)
	if !ok {
		return nil, malformed(command, payload, &KeyError{Key: key, Err: missingOrWrong(payload, key)})
	}
	out := make([]*fields, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(command, payload, &KeyError{Section: key, Key: fmt.Sprint(i), Err: ErrWrongType})
		}
		out = append(out, &fields{section: key, m: m})
	}
	return out, nil
}

// indexed returns the objects payload[key+"0"], payload[key+"1"], ... up to
// the first absent index.
func indexed(command string, payload map[string]any, key string) ([]*fields, error) {
	var out []*fields
	for i := 0; ; i++ {
		name := key + strconv.Itoa(i)
		if _, ok := payload[name]; !ok {
			return out, nil
		}
		f, err := section(command, payload, name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

func missingOrWrong(m map[string]any, key string) error {
	if _, ok := m[key]; ok {
		return ErrWrongType
	}
	return ErrMissingKey
}
