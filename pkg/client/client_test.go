package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/whatsminer-go/whatsminer/pkg/ecb"
	"github.com/whatsminer-go/whatsminer/pkg/kdf"
	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
	"github.com/whatsminer-go/whatsminer/pkg/transport/mocks"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

const testPassword = "admin"

var (
	testMachine = Machine{Host: "10.0.0.1", Password: testPassword}
	getToken    = []byte(`{"cmd":"get_token"}`)
	tokenReply  = []byte(`{"STATUS":"S","Code":134,"Msg":{"time":"0001","salt":"BQ5hoXV9","newsalt":"YnQYmCvq"}}`)
)

func testCredentials(t *testing.T) kdf.Credentials {
	t.Helper()
	creds, err := kdf.DeriveSession(testPassword, kdf.Salts{Salt: "BQ5hoXV9", NewSalt: "YnQYmCvq", Time: "0001"})
	require.NoError(t, err)
	return creds
}

// encryptedReply builds the device reply carrying plaintext.
func encryptedReply(t *testing.T, key []byte, plaintext string) []byte {
	t.Helper()
	enc, err := ecb.EncryptString([]byte(plaintext), key)
	require.NoError(t, err)
	out, err := wire.EncodeEncryptedReply(enc)
	require.NoError(t, err)
	return out
}

// openRequest decrypts an encrypted request envelope.
func openRequest(t *testing.T, key, msg []byte) map[string]any {
	t.Helper()
	outer, err := wire.Decode(msg)
	require.NoError(t, err)
	data, ok := wire.DecodeEncryptedRequest(outer)
	require.True(t, ok, "request is not an encrypted envelope: %s", msg)
	plain, err := ecb.DecryptString(data, key)
	require.NoError(t, err)
	inner, err := wire.Decode(plain)
	require.NoError(t, err)
	return inner
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(event log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestMachineAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.1:4028", Machine{Host: "10.0.0.1"}.Address())
	assert.Equal(t, "10.0.0.1:4029", Machine{Host: "10.0.0.1", Port: 4029}.Address())
	assert.Equal(t, "[fd00::1]:4028", Machine{Host: "fd00::1"}.Address())
}

func TestSendPlain(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, "10.0.0.1:4028", []byte(`{"cmd":"summary"}`), true).
		Return([]byte(`{"STATUS":"S","SUMMARY":[{"MHS av":123000,"Temperature":65.5}]}`), nil).Once()

	c := New(testMachine, WithExchanger(ex))
	payload, err := c.Read(context.Background(), wire.CmdSummary)
	require.NoError(t, err)

	summary := payload["SUMMARY"].([]any)[0].(map[string]any)
	assert.Equal(t, json.Number("123000"), summary["MHS av"])
	assert.Equal(t, json.Number("65.5"), summary["Temperature"])
	assert.False(t, c.Session().Valid(), "plain commands must not handshake")
}

func TestSendAppliesTimeout(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		RunAndReturn(func(ctx context.Context, _ string, _ []byte, _ bool) ([]byte, error) {
			deadline, ok := ctx.Deadline()
			if !ok {
				return nil, errors.New("no deadline")
			}
			if time.Until(deadline) > 3*time.Second {
				return nil, errors.New("deadline too far")
			}
			return []byte(`{"STATUS":"S"}`), nil
		}).Once()

	c := New(testMachine, WithExchanger(ex), WithTimeout(2*time.Second))
	_, err := c.Read(context.Background(), wire.CmdStatus)
	require.NoError(t, err)
}

func TestSendEncryptedHandshakeThenCommand(t *testing.T) {
	creds := testCredentials(t)
	var calls []string

	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, "10.0.0.1:4028", getToken, true).
		Run(func(context.Context, string, []byte, bool) { calls = append(calls, "get_token") }).
		Return(tokenReply, nil).Once()
	ex.EXPECT().Exchange(mock.Anything, "10.0.0.1:4028", mock.Anything, true).
		RunAndReturn(func(_ context.Context, _ string, msg []byte, _ bool) ([]byte, error) {
			calls = append(calls, "power_on")
			inner := openRequest(t, creds.Key, msg)
			assert.Equal(t, "power_on", inner["cmd"])
			assert.Equal(t, creds.Token, inner["token"])
			return encryptedReply(t, creds.Key, `{"STATUS":"S","Code":131,"Msg":"API command OK"}`), nil
		}).Once()

	c := New(testMachine, WithExchanger(ex))
	payload, err := c.Write(context.Background(), wire.CmdPowerOn)
	require.NoError(t, err)
	assert.Equal(t, "API command OK", payload["Msg"])
	assert.Equal(t, []string{"get_token", "power_on"}, calls)
}

func TestSendEncryptedParamsOrderAndEnvelope(t *testing.T) {
	creds := testCredentials(t)
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		RunAndReturn(func(_ context.Context, _ string, msg []byte, _ bool) ([]byte, error) {
			outer, err := wire.Decode(msg)
			require.NoError(t, err)
			assert.Len(t, outer, 2)
			assert.Equal(t, json.Number("1"), outer["enc"])

			data, _ := wire.DecodeEncryptedRequest(outer)
			plain, err := ecb.DecryptString(data, creds.Key)
			require.NoError(t, err)
			assert.Equal(t, `{"percent":"50","cmd":"set_power_pct","token":"`+creds.Token+`"}`, string(plain))
			return encryptedReply(t, creds.Key, `{"STATUS":"S","Code":131}`), nil
		}).Once()

	c := New(testMachine, WithExchanger(ex))
	_, err := c.Write(context.Background(), wire.CmdSetPowerPct, wire.P("percent", "50"))
	require.NoError(t, err)
}

func TestSendUnreachableSentinel(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		Return([]byte(wire.UnreachableSentinel+"\n"), nil).Once()

	_, err := New(testMachine, WithExchanger(ex)).Read(context.Background(), wire.CmdSummary)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrDeviceUnreachable)
	assert.NotErrorIs(t, err, wire.ErrMalformedResponse)
}

func TestSendTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *wire.Error
	}{
		{"refused", transport.ErrDeviceUnreachable, wire.ErrDeviceUnreachable},
		{"io", transport.ErrExchange, wire.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := mocks.NewMockExchanger(t)
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).Return(nil, tt.err).Once()

			_, err := New(testMachine, WithExchanger(ex)).Read(context.Background(), wire.CmdSummary)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSendMalformedReplies(t *testing.T) {
	for _, reply := range []string{`not json`, `[1,2]`, `{"SUMMARY":[]}`} {
		t.Run(reply, func(t *testing.T) {
			ex := mocks.NewMockExchanger(t)
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).Return([]byte(reply), nil).Once()

			_, err := New(testMachine, WithExchanger(ex)).Read(context.Background(), wire.CmdSummary)
			assert.ErrorIs(t, err, wire.ErrMalformedResponse)
		})
	}
}

func TestSendPlainCode23IsInvalidMessage(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		Return([]byte(`{"STATUS":"E","Code":23,"Msg":"invalid message"}`), nil).Once()

	_, err := New(testMachine, WithExchanger(ex)).Read(context.Background(), wire.CmdSummary)
	assert.ErrorIs(t, err, wire.ErrInvalidMessage)
}

func TestSendEncryptedFailureClassifiedBeforeDecrypt(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		want       *wire.Error
		invalidate bool
	}{
		{"bare code 23", `{"STATUS":"E","Code":23,"Msg":"invalid message"}`, wire.ErrInvalidAuth, true},
		{"token error", `{"STATUS":"E","Code":135,"Msg":"token error"}`, wire.ErrTokenError, true},
		{"decode error", `{"STATUS":"E","Code":137,"Msg":"decode error"}`, wire.ErrDecodeError, true},
		{"command error", `{"STATUS":"E","Code":132,"Msg":"cmd error"}`, wire.ErrCommandError, false},
		{"token exceeded", `{"STATUS":"E","Code":136}`, wire.ErrTokenExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := mocks.NewMockExchanger(t)
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).Return([]byte(tt.reply), nil).Once()

			c := New(testMachine, WithExchanger(ex))
			_, err := c.Write(context.Background(), wire.CmdPowerOff, wire.P("respbefore", "true"))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, !tt.invalidate, c.Session().Valid())
		})
	}
}

func TestSendEncryptedInnerFailure(t *testing.T) {
	creds := testCredentials(t)
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		Return(encryptedReply(t, creds.Key, `{"STATUS":"E","Code":135,"Msg":"token error"}`), nil).Once()

	c := New(testMachine, WithExchanger(ex))
	_, err := c.Write(context.Background(), wire.CmdRestartBTMiner)
	assert.ErrorIs(t, err, wire.ErrTokenError)
	assert.False(t, c.Session().Valid())
}

func TestSendEncryptedBadEnvelope(t *testing.T) {
	wrongKey := make([]byte, ecb.KeySize)
	garbage := encryptedReply(t, wrongKey, `{"STATUS":"S"}`)

	tests := []struct {
		name       string
		reply      []byte
		invalidate bool
	}{
		{"no enc", []byte(`{"STATUS":"S","Msg":"ok"}`), false},
		{"enc not string", []byte(`{"enc":1}`), false},
		{"bad base64", []byte(`{"enc":"***"}`), false},
		{"wrong key", garbage, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := mocks.NewMockExchanger(t)
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
			ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).Return(tt.reply, nil).Once()

			c := New(testMachine, WithExchanger(ex))
			_, err := c.Write(context.Background(), wire.CmdPowerOn)
			assert.ErrorIs(t, err, wire.ErrMalformedResponse)
			assert.Equal(t, !tt.invalidate, c.Session().Valid())
		})
	}
}

func TestSendTokenAcquisitionFailure(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).
		Return([]byte(`{"STATUS":"E","Code":136,"Msg":"over max connect"}`), nil).Once()

	_, err := New(testMachine, WithExchanger(ex)).Write(context.Background(), wire.CmdPowerOn)
	assert.ErrorIs(t, err, wire.ErrTokenAcquisition)
	assert.ErrorIs(t, err, wire.ErrTokenExceeded)
}

func TestSendWithoutResponse(t *testing.T) {
	creds := testCredentials(t)
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, false).
		RunAndReturn(func(_ context.Context, _ string, msg []byte, _ bool) ([]byte, error) {
			assert.Equal(t, "reboot", openRequest(t, creds.Key, msg)["cmd"])
			return nil, nil
		}).Once()

	cmd := wire.NewWrite(wire.CmdReboot)
	cmd.ExpectResponse = false
	payload, err := New(testMachine, WithExchanger(ex)).Send(context.Background(), cmd)
	assert.NoError(t, err)
	assert.Nil(t, payload)
}

func TestSendInvalidCommand(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	_, err := New(testMachine, WithExchanger(ex)).Send(context.Background(), wire.Command{})
	assert.ErrorIs(t, err, wire.ErrEmptyCommand)
}

func TestSendConcurrentWritesShareHandshake(t *testing.T) {
	creds := testCredentials(t)
	var mu sync.Mutex
	handshakes := 0
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).
		RunAndReturn(func(context.Context, string, []byte, bool) ([]byte, error) {
			mu.Lock()
			handshakes++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			return tokenReply, nil
		}).Maybe()
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		RunAndReturn(func(_ context.Context, _ string, msg []byte, _ bool) ([]byte, error) {
			inner := openRequest(t, creds.Key, msg)
			assert.Equal(t, creds.Token, inner["token"])
			return encryptedReply(t, creds.Key, `{"STATUS":"S","Code":131}`), nil
		}).Maybe()

	c := New(testMachine, WithExchanger(ex))
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Write(context.Background(), wire.CmdPowerOn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, handshakes)
}

func TestSendProtocolEvents(t *testing.T) {
	creds := testCredentials(t)
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, getToken, true).Return(tokenReply, nil).Once()
	ex.EXPECT().Exchange(mock.Anything, mock.Anything, mock.Anything, true).
		Return(encryptedReply(t, creds.Key, `{"STATUS":"S","Code":131}`), nil).Once()

	logger := &recordingLogger{}
	c := New(testMachine, WithExchanger(ex), WithProtocolLogger(logger))
	_, err := c.Write(context.Background(), wire.CmdSetTargetFreq, wire.P("percent", "10"))
	require.NoError(t, err)

	var req, resp *log.MessageEvent
	for _, ev := range logger.events {
		if ev.Message == nil {
			continue
		}
		switch ev.Message.Type {
		case log.MessageTypeRequest:
			req = ev.Message
		case log.MessageTypeResponse:
			resp = ev.Message
		}
	}
	require.NotNil(t, req)
	require.NotNil(t, resp)

	payload := req.Payload.(map[string]any)
	assert.Equal(t, "set_target_freq", payload["cmd"])
	assert.Equal(t, redacted, payload["token"])
	assert.True(t, req.Encrypted)
	assert.Equal(t, "S", resp.Status)
	require.NotNil(t, resp.Code)
	assert.Equal(t, 131, *resp.Code)
}
