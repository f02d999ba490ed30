package notifier

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New(nil)

	ch := n.Subscribe()
	require.NotNil(t, ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 1)
	n.mu.RUnlock()

	n.Unsubscribe(ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()

	// Second unsubscribe must not panic on a closed channel.
	n.Unsubscribe(ch)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New(nil)

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Info("Starting the PL/SQL Lint Server")

	for i, ch := range []chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, LevelInfo, msg.Level)
			assert.Equal(t, "Starting the PL/SQL Lint Server", msg.Text)
		case <-time.After(100 * time.Millisecond):
			t.Errorf("listener %d did not receive broadcast", i)
		}
	}
}

func TestNotifier_Broadcast_NonBlocking(t *testing.T) {
	n := New(nil)

	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	for i := 0; i < listenerBuffer; i++ {
		ch <- Message{}
	}

	done := make(chan bool)
	go func() {
		n.Info("overflow")
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Broadcast blocked on full channel")
	}
}

func TestNotifier_WarnCarriesKind(t *testing.T) {
	n := New(nil)
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	n.Warn(fmt.Errorf("wrapped: %w", &Error{Kind: KindConfigParse, Op: "load config", Path: "/p/.oraclelint.json"}))
	n.Warn(nil)

	msg := <-ch
	assert.Equal(t, LevelWarning, msg.Level)
	assert.Equal(t, KindConfigParse, msg.Kind)
	assert.Contains(t, msg.Text, "/p/.oraclelint.json")
	assert.Empty(t, ch, "nil errors must not be broadcast")
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New(nil)

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Info("ping")
			n.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("lint: %w", &Error{Kind: KindMalformedResponse, Op: "lint-file", Err: cause})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrServiceUnreachable)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(cause))
	assert.Equal(t, "lint: lint-file: malformed lint server response: unexpected end of JSON input", err.Error())
}
