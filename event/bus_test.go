package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_OrderedDelivery(t *testing.T) {
	bus := NewBus[uint64, string]()

	var first, second []string
	bus.AddHandler(HandlerFunc[uint64, string](func(key uint64, e string) {
		require.Equal(t, uint64(7), key)
		first = append(first, e)
	}))
	bus.AddHandler(HandlerFunc[uint64, string](func(_ uint64, e string) {
		second = append(second, e)
	}))

	for _, e := range []string{"a", "b", "c"} {
		bus.OnEvent(7, e)
	}

	require.Equal(t, []string{"a", "b", "c"}, first)
	require.Equal(t, []string{"a", "b", "c"}, second)
}

func TestBus_HandlerMayRegisterHandler(t *testing.T) {
	bus := NewBus[uint64, string]()

	var late []string
	bus.AddHandler(HandlerFunc[uint64, string](func(_ uint64, e string) {
		if e == "register" {
			bus.AddHandler(HandlerFunc[uint64, string](func(_ uint64, e string) {
				late = append(late, e)
			}))
		}
	}))

	bus.OnEvent(1, "register")
	require.Empty(t, late)

	bus.OnEvent(1, "after")
	require.Equal(t, []string{"after"}, late)
}

func TestChanStream(t *testing.T) {
	stream := NewChanStream[int, string]("evens", 2, func(e int) (string, bool) {
		if e%2 != 0 {
			return "", false
		}
		return "even", true
	})
	require.Equal(t, "evens", stream.ID())

	require.NoError(t, stream.Notify(1, time.Second))
	require.NoError(t, stream.Notify(2, time.Second))
	require.NoError(t, stream.Notify(4, time.Second))
	require.Len(t, stream.Channel(), 2)

	// Buffer is full, so this times out and closes the stream.
	require.ErrorIs(t, stream.Notify(6, 10*time.Millisecond), ErrNotifyTimeout)
	require.ErrorIs(t, stream.Notify(8, time.Second), ErrStreamClosed)

	var received []string
	for msg := range stream.Channel() {
		received = append(received, msg)
	}
	require.Equal(t, []string{"even", "even"}, received)

	stream.Close()
}

func TestChanStream_Close(t *testing.T) {
	stream := NewChanStream[int, int]("ints", 1, func(e int) (int, bool) {
		return e, true
	})

	require.NoError(t, stream.Notify(1, time.Second))
	stream.Close()
	stream.Close()

	require.ErrorIs(t, stream.Notify(2, time.Second), ErrStreamClosed)

	msg, ok := <-stream.Channel()
	require.True(t, ok)
	require.Equal(t, 1, msg)
	_, ok = <-stream.Channel()
	require.False(t, ok)
}
