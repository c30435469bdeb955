package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		token string
		want  string
	}{
		{
			name: "no params",
			cmd:  NewRead(CmdSummary),
			want: `{"cmd":"summary"}`,
		},
		{
			name: "params keep order",
			cmd:  NewWrite(CmdPowerOff, P("respbefore", "true"), P("a", "1")),
			want: `{"respbefore":"true","a":"1","cmd":"power_off"}`,
		},
		{
			name:  "token appended",
			cmd:   NewWrite(CmdSetPowerPct, P("percent", "50")),
			token: "tok123",
			want:  `{"percent":"50","cmd":"set_power_pct","token":"tok123"}`,
		},
		{
			name: "values escaped",
			cmd:  NewRead("x", P("q", `a"b`)),
			want: `{"q":"a\"b","cmd":"x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd, tt.token)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodeCommand() = %s, want %s", got, tt.want)
			}
			var m map[string]any
			if err := json.Unmarshal(got, &m); err != nil {
				t.Errorf("output is not valid JSON: %v", err)
			}
		})
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"empty name", Command{}, ErrEmptyCommand},
		{"reserved cmd", NewRead("x", P("cmd", "y")), ErrReservedParam},
		{"reserved token", NewWrite("x", P("token", "y")), ErrReservedParam},
		{"duplicate", NewRead("x", P("a", "1"), P("a", "2")), ErrDuplicateParam},
		{"empty key", NewRead("x", P("", "1")), ErrEmptyParamName},
		{"valid", NewRead("x", P("a", "1")), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := EncodeCommand(Command{}, ""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("EncodeCommand(empty) error = %v", err)
	}
}

func TestCommandFlags(t *testing.T) {
	r := NewRead(CmdSummary)
	if r.Encrypted || !r.ExpectResponse {
		t.Errorf("NewRead flags = %+v", r)
	}
	w := NewWrite(CmdPowerOn)
	if !w.Encrypted || !w.ExpectResponse {
		t.Errorf("NewWrite flags = %+v", w)
	}
	if v, ok := NewWrite("x", P("percent", "5")).Param("percent"); !ok || v != "5" {
		t.Errorf("Param() = %q, %v", v, ok)
	}
}

func TestEncryptedEnvelope(t *testing.T) {
	msg, err := EncodeEncrypted("QUJD")
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}
	if string(msg) != `{"enc":1,"data":"QUJD"}` {
		t.Errorf("EncodeEncrypted() = %s", msg)
	}

	decoded, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	data, ok := DecodeEncryptedRequest(decoded)
	if !ok || data != "QUJD" {
		t.Errorf("DecodeEncryptedRequest() = %q, %v", data, ok)
	}

	if _, ok := DecodeEncryptedRequest(map[string]any{"cmd": "summary"}); ok {
		t.Error("plain command reported as encrypted")
	}

	reply, err := EncodeEncryptedReply("WFla")
	if err != nil {
		t.Fatalf("EncodeEncryptedReply() error = %v", err)
	}
	decoded, err = Decode(reply)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if s, ok := EncryptedReply(decoded); !ok || s != "WFla" {
		t.Errorf("EncryptedReply() = %q, %v", s, ok)
	}
}
