package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BasicSubscribeSignal(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe()
	defer cancel()

	assert.Equal(t, 1, hub.Signal("audit", "admin"))

	select {
	case sig := <-signals:
		assert.Equal(t, Signal{Source: "audit", Reason: "admin"}, sig)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for signal")
	}
}

func TestHub_FilterSpecificSource(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe("audit1")
	defer cancel()

	assert.Equal(t, 1, hub.Signal("audit1", "admin"))
	select {
	case sig := <-signals:
		assert.Equal(t, "audit1", sig.Source)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for signal")
	}

	assert.Equal(t, 0, hub.Signal("audit2", "admin"))
	select {
	case sig := <-signals:
		t.Errorf("should not receive signal for audit2, got %s", sig.Source)
	case <-time.After(50 * time.Millisecond):
		// Expected - no signal
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < defaultSignalBufferSize*3; i++ {
		hub.Signal("audit", "burst")
	}
	assert.Len(t, signals, defaultSignalBufferSize)
	assert.Equal(t, 0, hub.Signal("audit", "burst"))
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.Len())

	cancel()
	cancel() // idempotent

	_, ok := <-signals
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, 0, hub.Signal("audit", "admin"))
}

func TestHub_ConcurrentSignalAndCancel(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		signals, cancel := hub.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Signal("audit", "load")
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
			for range signals {
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Len())
}
