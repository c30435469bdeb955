package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/whatsminer-go/whatsminer/pkg/kdf"
	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
	"github.com/whatsminer-go/whatsminer/pkg/transport/mocks"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

const (
	testAddr   = "10.0.0.1:4028"
	testSecret = "admin"
)

var (
	getToken   = []byte(`{"cmd":"get_token"}`)
	tokenReply = []byte(`{"STATUS":"S","Code":134,"Msg":{"time":"0245","salt":"BQ5hoXV9","newsalt":"YnQYmCvq"},"Description":""}`)
	testSalts  = kdf.Salts{Salt: "BQ5hoXV9", NewSalt: "YnQYmCvq", Time: "0245"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
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

func TestCredentialsHandshake(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return(tokenReply, nil).Once()

	s := New(ex, testAddr, testSecret)
	assert.False(t, s.Valid())

	creds, err := s.Credentials(context.Background())
	require.NoError(t, err)

	want, err := kdf.DeriveSession(testSecret, testSalts)
	require.NoError(t, err)
	assert.Equal(t, want, creds)
	assert.Len(t, creds.Key, kdf.KeySize)
	assert.True(t, s.Valid())

	// Cached: no second exchange.
	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Token, token)
	assert.Equal(t, 1, s.Handshakes())
}

func TestCredentialsFreshnessWindow(t *testing.T) {
	clock := newFakeClock()
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return(tokenReply, nil).Times(2)

	s := New(ex, testAddr, testSecret, WithClock(clock.Now))
	_, err := s.Credentials(context.Background())
	require.NoError(t, err)

	clock.Advance(28*time.Minute + 59*time.Second)
	assert.True(t, s.Valid(), "session must be usable at 28m59s")
	_, err = s.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Handshakes())

	clock.Advance(time.Second)
	assert.False(t, s.Valid(), "session must be absent at 29m0s")
	_, err = s.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Handshakes())
}

func TestCredentialsSingleFlight(t *testing.T) {
	var calls atomic.Int32
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).
		RunAndReturn(func(context.Context, string, []byte, bool) ([]byte, error) {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return tokenReply, nil
		}).Maybe()

	s := New(ex, testAddr, testSecret)

	const callers = 16
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := s.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one handshake")
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestCredentialsFailureCachesNothing(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).
		Return(nil, transport.ErrDeviceUnreachable).Once()
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return(tokenReply, nil).Once()

	s := New(ex, testAddr, testSecret)

	_, err := s.Credentials(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrTokenAcquisition)
	assert.ErrorIs(t, err, wire.ErrDeviceUnreachable)
	kind, _ := wire.KindOf(err)
	assert.Equal(t, wire.KindTokenAcquisition, kind)
	assert.False(t, s.Valid())
	assert.Equal(t, 0, s.Handshakes())

	_, err = s.Credentials(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Valid())
}

func TestCredentialsHandshakeErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"over max connect", `{"STATUS":"E","Code":136,"Msg":"over max connect"}`, wire.ErrTokenExceeded},
		{"over max connect without failure marker", `{"STATUS":"S","Msg":"over max connect"}`, wire.ErrTokenExceeded},
		{"failure code", `{"STATUS":"E","Code":45,"Msg":"denied"}`, wire.ErrPermissionDenied},
		{"no status", `{"Msg":{"salt":"a","newsalt":"b","time":"1"}}`, wire.ErrMissingStatus},
		{"missing newsalt", `{"STATUS":"S","Msg":{"salt":"BQ5hoXV9","time":"0245"}}`, ErrMissingSalts},
		{"msg not object", `{"STATUS":"S","Msg":"ok"}`, ErrMissingSalts},
		{"not json", `garbage`, wire.ErrMalformedResponse},
		{"sentinel", wire.UnreachableSentinel, wire.ErrDeviceUnreachable},
		{"bad salt", `{"STATUS":"S","Msg":{"salt":"bad salt!","newsalt":"YnQYmCvq","time":"1"}}`, kdf.ErrSaltFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := mocks.NewMockExchanger(t)
			ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return([]byte(tt.reply), nil).Once()

			s := New(ex, testAddr, testSecret)
			_, err := s.Credentials(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, wire.ErrTokenAcquisition)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, s.Valid())
		})
	}
}

func TestCredentialsFormatErrorReachable(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).
		Return([]byte(`{"STATUS":"S","Msg":{"salt":"salt_x","newsalt":"YnQYmCvq","time":"1"}}`), nil).Once()

	_, err := New(ex, testAddr, testSecret).Credentials(context.Background())
	var fe *kdf.FormatError
	require.True(t, errors.As(err, &fe), "FormatError not reachable from %v", err)
	assert.Contains(t, fe.Salt, "salt_x")
}

func TestNumericTimeAccepted(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).
		Return([]byte(`{"STATUS":"S","Msg":{"time":245,"salt":"BQ5hoXV9","newsalt":"YnQYmCvq"}}`), nil).Once()

	creds, err := New(ex, testAddr, testSecret).Credentials(context.Background())
	require.NoError(t, err)

	want, err := kdf.DeriveSession(testSecret, kdf.Salts{Salt: "BQ5hoXV9", NewSalt: "YnQYmCvq", Time: "245"})
	require.NoError(t, err)
	assert.Equal(t, want.Token, creds.Token)
}

func TestInvalidate(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return(tokenReply, nil).Times(2)

	logger := &recordingLogger{}
	s := New(ex, testAddr, testSecret, WithProtocolLogger(logger))
	token, err := s.Token(context.Background())
	require.NoError(t, err)

	s.Invalidate("some-older-token", "TOKEN_ERROR")
	assert.True(t, s.Valid(), "a different token must not drop the session")

	s.Invalidate(token, "TOKEN_ERROR")
	assert.False(t, s.Valid())

	_, err = s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Handshakes())

	require.Len(t, logger.events, 3)
	assert.Equal(t, "VALID", logger.events[0].StateChange.NewState)
	assert.Equal(t, "INVALID", logger.events[1].StateChange.NewState)
	assert.Equal(t, "TOKEN_ERROR", logger.events[1].StateChange.Reason)
	assert.Equal(t, log.LayerSession, logger.events[1].Layer)
	assert.Equal(t, "ABSENT", logger.events[2].StateChange.OldState)
}

func TestReset(t *testing.T) {
	ex := mocks.NewMockExchanger(t)
	ex.EXPECT().Exchange(mock.Anything, testAddr, getToken, true).Return(tokenReply, nil).Once()

	s := New(ex, testAddr, testSecret)
	_, err := s.Token(context.Background())
	require.NoError(t, err)

	s.Reset()
	assert.False(t, s.Valid())
	s.Reset()
}
