package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON keys used on the wire.
const (
	KeyCmd    = "cmd"
	KeyToken  = "token"
	KeyEnc    = "enc"
	KeyData   = "data"
	KeyStatus = "STATUS"
	KeyCode   = "Code"
	KeyMsg    = "Msg"
)

// Command names.
const (
	CmdGetToken        = "get_token"
	CmdSummary         = "summary"
	CmdPools           = "pools"
	CmdDevDetails      = "devdetails"
	CmdGetPSU          = "get_psu"
	CmdGetVersion      = "get_version"
	CmdStatus          = "status"
	CmdRestartBTMiner  = "restart_btminer"
	CmdReboot          = "reboot"
	CmdPowerOn         = "power_on"
	CmdPowerOff        = "power_off"
	CmdSetTargetFreq   = "set_target_freq"
	CmdSetPowerPct     = "set_power_pct"
	CmdEnableFastBoot  = "enable_btminer_fast_boot"
	CmdDisableFastBoot = "disable_btminer_fast_boot"
)

// encryptedEnvelopeTag is the value of "enc" in encrypted requests.
const encryptedEnvelopeTag = 1

// Command validation errors.
var (
	ErrEmptyCommand   = errors.New("command name is empty")
	ErrReservedParam  = errors.New("parameter name is reserved")
	ErrDuplicateParam = errors.New("duplicate parameter")
	ErrEmptyParamName = errors.New("parameter name is empty")
)

// Param is a single named command parameter. Parameter values are always
// strings on the wire.
type Param struct {
	Key   string
	Value string
}

// P is shorthand for building a Param.
func P(key, value string) Param {
	return Param{Key: key, Value: value}
}

// Command is the envelope of one request: a command name with ordered
// parameters, plus how it has to be sent.
//
// JSON encoding (parameters keep their order, cmd and token follow):
//
//	{"<param>": "<value>", ..., "cmd": "<name>", "token": "<token>"}
type Command struct {
	Name   string
	Params []Param

	// Encrypted commands carry the session token and are sent inside an
	// {"enc":1,"data":...} envelope.
	Encrypted bool

	// ExpectResponse is false for fire-and-forget commands.
	ExpectResponse bool
}

// NewRead creates a plain command that expects a reply.
func NewRead(name string, params ...Param) Command {
	return Command{Name: name, Params: params, ExpectResponse: true}
}

// NewWrite creates an encrypted command that expects a reply.
func NewWrite(name string, params ...Param) Command {
	return Command{Name: name, Params: params, Encrypted: true, ExpectResponse: true}
}

// Validate checks the command name and parameters.
func (c Command) Validate() error {
	if c.Name == "" {
		return ErrEmptyCommand
	}
	seen := make(map[string]struct{}, len(c.Params))
	for _, p := range c.Params {
		switch p.Key {
		case "":
			return ErrEmptyParamName
		case KeyCmd, KeyToken:
			return fmt.Errorf("%w: %q", ErrReservedParam, p.Key)
		}
		if _, dup := seen[p.Key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateParam, p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	return nil
}

// Param returns the value of the named parameter.
func (c Command) Param(key string) (string, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// EncodeCommand serializes the command's plaintext object. A non-empty
// token is appended as the "token" field.
func EncodeCommand(c Command, token string) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, p := range c.Params {
		writeField(&buf, p.Key, p.Value)
		buf.WriteByte(',')
	}
	writeField(&buf, KeyCmd, c.Name)
	if token != "" {
		buf.WriteByte(',')
		writeField(&buf, KeyToken, token)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string) {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}

// encryptedRequest is the outgoing encrypted envelope.
type encryptedRequest struct {
	Enc  int    `json:"enc"`
	Data string `json:"data"`
}

// EncodeEncrypted wraps base64 ciphertext into the request envelope.
func EncodeEncrypted(data string) ([]byte, error) {
	return json.Marshal(encryptedRequest{Enc: encryptedEnvelopeTag, Data: data})
}

// DecodeEncryptedRequest extracts the base64 ciphertext from a request
// envelope. ok is false when msg is not an encrypted envelope.
func DecodeEncryptedRequest(msg map[string]any) (data string, ok bool) {
	if !isTag(msg[KeyEnc]) {
		return "", false
	}
	data, ok = msg[KeyData].(string)
	return data, ok
}

// EncryptedReply extracts the base64 ciphertext of an encrypted reply.
func EncryptedReply(reply map[string]any) (string, bool) {
	s, ok := reply[KeyEnc].(string)
	return s, ok
}

// EncodeEncryptedReply builds the reply envelope a device sends back.
func EncodeEncryptedReply(data string) ([]byte, error) {
	return json.Marshal(map[string]string{KeyEnc: data})
}

func isTag(v any) bool {
	n, ok := ToInt(v)
	return ok && n == encryptedEnvelopeTag
}
