package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelay_PutGet(t *testing.T) {
	r := New[int](3)
	r.Put(1)
	r.Put(2)
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestRelay_EvictsOldestWhenFull(t *testing.T) {
	r := New[int](2)
	r.Put(1)
	r.Put(2)
	r.Put(3) // evicts 1

	got, err := r.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, got)
	got, err = r.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestRelay_CapacityOneKeepsLatest(t *testing.T) {
	r := New[string](1)
	r.Put("a")
	r.Put("b")

	got, err := r.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestRelay_GetWokenByPut(t *testing.T) {
	r := New[int](1)
	done := make(chan int)
	go func() {
		got, err := r.Get(context.Background())
		assert.NoError(t, err)
		done <- got
	}()
	time.Sleep(10 * time.Millisecond)
	r.Put(42)
	select {
	case got := <-done:
		assert.Equal(t, 42, got)
	case <-time.After(time.Second):
		t.Fatal("Get was not woken by Put")
	}
}

func TestRelay_GetCancelled(t *testing.T) {
	r := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
