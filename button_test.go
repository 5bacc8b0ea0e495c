package main

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtonWatcherDebouncedPress(t *testing.T) {
	auth := &fakeAuth{}
	ctl, hw, capture := newTestController(t, testConfig(), auth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		runButtonWatcher(ctx, hw, ctl, log.New(os.Stderr, "test ", 0))
		close(done)
	}()

	// A real press: the input still reads pressed after the debounce
	// window.
	hw.setPressed(true)
	hw.edges <- struct{}{}
	require.Eventually(t, func() bool { return len(capture.all()) == 1 },
		2*time.Second, 5*time.Millisecond)
	hw.setPressed(false)

	evs := capture.all()
	assert.Equal(t, ActionUnlock, evs[0].Action)
	assert.Equal(t, ActorButton, evs[0].Actor)
	assert.Equal(t, 0, auth.callCount())

	cancel()
	<-done
	ctl.Wait()
}

func TestButtonWatcherIgnoresBounce(t *testing.T) {
	auth := &fakeAuth{}
	ctl, hw, capture := newTestController(t, testConfig(), auth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		runButtonWatcher(ctx, hw, ctl, log.New(os.Stderr, "test ", 0))
		close(done)
	}()

	// An edge with the input already released again is contact bounce and
	// must not reach the controller.
	hw.setPressed(false)
	hw.edges <- struct{}{}
	time.Sleep(3 * debounceWindow)
	assert.Empty(t, capture.all())

	cancel()
	<-done
	ctl.Wait()
}
