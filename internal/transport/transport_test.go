package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.NoError(t, ValidateCode(code))
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "O")
		require.NotContains(t, code, "1")
		require.NotContains(t, code, "I")
	}
}

func TestValidateCode(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
	}{
		{"ABC234", true},
		{"abc234", false},
		{"ABC23", false},
		{"ABC2340", false},
		{"ABCO23", false},
	}
	for _, tc := range cases {
		err := ValidateCode(tc.code)
		if tc.ok {
			assert.NoError(t, err, tc.code)
		} else {
			assert.ErrorIs(t, err, ErrInvalidCode, tc.code)
		}
	}
	assert.NoError(t, ValidateCode(NormalizeCode("  abc234 ")))
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, "pokdeng-ABC234", HostAddress("abc234"))
	guest := GuestAddress("ABC234", "5f0c-77aa")
	assert.Equal(t, "pokdeng-ABC234-5f0c-77aa", guest)

	code, id, ok := ParseGuestAddress(guest)
	require.True(t, ok)
	assert.Equal(t, "ABC234", code)
	assert.Equal(t, "5f0c-77aa", id)

	for _, bad := range []string{"pokdeng-ABC234", "pokdeng-ABC234-", "other-ABC234-x", "pokdeng-ABC2345x"} {
		_, _, ok := ParseGuestAddress(bad)
		assert.False(t, ok, bad)
	}
}

func TestNetwork_DialAcceptRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n := NewNetwork()
	l, err := n.Listen("host")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan Channel, 1)
	go func() {
		ch, err := l.Accept(ctx)
		if err == nil {
			accepted <- ch
		}
	}()

	guest, err := n.Dial(ctx, "guest", "host")
	require.NoError(t, err)
	host := <-accepted
	assert.Equal(t, "host", guest.RemoteAddr())
	assert.Equal(t, "guest", host.RemoteAddr())

	for i := 0; i < 5; i++ {
		require.NoError(t, guest.Send(ctx, []byte{byte(i)}))
	}
	for i := 0; i < 5; i++ {
		msg, err := host.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, msg, "messages arrive in order")
	}

	require.NoError(t, host.Send(ctx, []byte("bye")))
	require.NoError(t, host.Close())
	msg, err := guest.Receive(ctx)
	require.NoError(t, err, "data sent before close is delivered")
	assert.Equal(t, "bye", string(msg))
	_, err = guest.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, guest.Send(ctx, []byte("x")), ErrClosed)
}

func TestNetwork_DialUnknownAddress(t *testing.T) {
	n := NewNetwork()
	_, err := n.Dial(context.Background(), "guest", "nobody")
	require.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, ErrAddressUnavailable)
}

func TestNetwork_DialTimesOutWhenNobodyAccepts(t *testing.T) {
	n := NewNetwork()
	l, err := n.Listen("host")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = n.Dial(ctx, "guest", "host")
	require.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, strings.Contains(err.Error(), "host"))
}

func TestNetwork_ListenerClose(t *testing.T) {
	n := NewNetwork()
	l, err := n.Listen("host")
	require.NoError(t, err)

	_, err = n.Listen("host")
	assert.ErrorIs(t, err, ErrAddressInUse)

	require.NoError(t, l.Close())
	_, err = l.Accept(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = n.Dial(context.Background(), "guest", "host")
	assert.ErrorIs(t, err, ErrAddressUnavailable)

	again, err := n.Listen("host")
	require.NoError(t, err, "address is free after close")
	_ = again.Close()
}
