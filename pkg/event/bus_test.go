package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusFireOrder(t *testing.T) {
	b := NewBus()
	var order []int

	b.Listen("property-changed", "a", func(name string, data interface{}) {
		order = append(order, 1)
	}, nil)
	b.Listen("property-changed", "b", func(name string, data interface{}) {
		order = append(order, 2)
	}, nil)

	b.Fire("property-changed", "foo")
	require.Equal(t, []int{1, 2}, order)
}

func TestBusBlockUnblockDrops(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Listen("sig", "owner", func(name string, data interface{}) {
		calls++
	}, nil)

	b.Block()
	b.Fire("sig", nil)
	require.Equal(t, 0, calls)

	b.Unblock()
	b.Fire("sig", nil)
	require.Equal(t, 1, calls)
}

func TestBusNestedBlock(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Listen("sig", "owner", func(string, interface{}) { calls++ }, nil)

	b.Block()
	b.Block()
	b.Unblock()
	b.Fire("sig", nil)
	require.Equal(t, 0, calls, "should still be blocked after one unblock")

	b.Unblock()
	b.Fire("sig", nil)
	require.Equal(t, 1, calls)
}

func TestBusDisconnect(t *testing.T) {
	b := NewBus()
	calls := 0
	cb := func(string, interface{}) { calls++ }
	b.Listen("sig", "owner-a", cb, nil)
	b.Listen("sig", "owner-b", cb, nil)

	b.Disconnect("owner-a")
	b.Fire("sig", nil)
	require.Equal(t, 1, calls)
}

func TestBusDisconnectDuringFireIsSafe(t *testing.T) {
	b := NewBus()
	var fired []string

	b.Listen("sig", "a", func(string, interface{}) {
		fired = append(fired, "a")
		b.Disconnect("b")
	}, nil)
	b.Listen("sig", "b", func(string, interface{}) {
		fired = append(fired, "b")
	}, nil)

	b.Fire("sig", nil)
	require.Equal(t, []string{"a", "b"}, fired, "first fire still invokes b despite mid-fire disconnect")

	fired = nil
	b.Fire("sig", nil)
	require.Equal(t, []string{"a"}, fired, "second fire no longer invokes b")
}

func TestBusSubscribeReceivesEveryName(t *testing.T) {
	b := NewBus()
	feed, cancel := b.Subscribe()
	defer cancel()

	b.Fire("property-changed", "width")
	b.Fire("consumer-frame-show", 7)

	sig1 := <-feed
	require.Equal(t, "property-changed", sig1.Name)
	require.Equal(t, "width", sig1.Data)

	sig2 := <-feed
	require.Equal(t, "consumer-frame-show", sig2.Name)
	require.Equal(t, 7, sig2.Data)
}

func TestBusSubscribeCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	feed, cancel := b.Subscribe()
	cancel()

	b.Fire("sig", nil)
	_, ok := <-feed
	require.False(t, ok, "channel should be closed after cancel")
}
