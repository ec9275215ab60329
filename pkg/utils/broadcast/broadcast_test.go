package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recvOne[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast message")
		var zero T
		return zero
	}
}

func TestBroadcast_AllSubscribersReceive(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)
	defer srv.Close()

	sub1 := srv.Subscribe()
	sub2 := srv.Subscribe()
	sub3 := srv.Subscribe()

	go func() { source <- 7 }()

	assert.Equal(t, 7, recvOne(t, sub1))
	assert.Equal(t, 7, recvOne(t, sub2))
	assert.Equal(t, 7, recvOne(t, sub3))
}

func TestBroadcast_StalledSubscriberDoesNotBlockOthers(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)
	defer srv.Close()

	stalled := srv.Subscribe()
	_ = stalled // never read
	active := srv.Subscribe()

	go func() {
		source <- 1
		source <- 2
	}()

	assert.Equal(t, 1, recvOne(t, active))
	assert.Equal(t, 2, recvOne(t, active))
}

func TestBroadcast_CancelSubscriptionClosesChannel(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)
	defer srv.Close()

	sub := srv.Subscribe()
	srv.CancelSubscription(sub)

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel was not closed")
	}
}

func TestBroadcast_CloseTerminatesSubscribers(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)

	sub := srv.Subscribe()
	srv.Close()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel still open after Close")
	}
}

func TestBroadcast_CloseDuringDelivery(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)

	sub := srv.Subscribe()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range sub {
		}
	}()
	go func() {
		for i := 0; i < 100; i++ {
			select {
			case source <- i:
			default:
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	// reads the delivery counters while the serve loop may still update them
	srv.Close()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel still open after Close")
	}
}

func TestBroadcast_SourceCloseTerminates(t *testing.T) {
	source := make(chan int)
	srv := NewBroadcastServer("test", source)
	defer srv.Close()

	sub := srv.Subscribe()
	close(source)

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel still open after source close")
	}
}
