// internal/ws/router_test.go
package ws

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatch(r *Router, event string) bool {
	return r.Dispatch(&HandlerContext{
		Peer:    NewPeer("tester", nil),
		Event:   event,
		Message: json.RawMessage(`{"event":"` + event + `"}`),
	})
}

func TestRouterDispatchOrderAndMultiMatch(t *testing.T) {
	r := NewRouter()
	var calls []string
	r.Tap(func(hc *HandlerContext) error {
		calls = append(calls, "tap")
		return nil
	})
	r.Handle(`playCard`, func(hc *HandlerContext) error {
		calls = append(calls, "playCard")
		return nil
	})
	r.Handle(`play.*`, func(hc *HandlerContext) error {
		calls = append(calls, "playAny")
		return nil
	})

	require.True(t, dispatch(r, "playCard"))
	assert.Equal(t, []string{"tap", "playCard", "playAny"}, calls,
		"taps first, then every matching handler in registration order")
}

// A tap sees every event but never claims it: events no routed handler
// recognizes must still report as unmatched.
func TestRouterTapDoesNotCountAsMatch(t *testing.T) {
	r := NewRouter()
	var tapped []string
	r.Tap(func(hc *HandlerContext) error {
		tapped = append(tapped, hc.Event)
		return nil
	})
	r.Handle(`subscribe`, func(hc *HandlerContext) error { return nil })

	assert.True(t, dispatch(r, "subscribe"))
	assert.False(t, dispatch(r, "teleport"))
	assert.Equal(t, []string{"subscribe", "teleport"}, tapped)
}

func TestRouterNoMatch(t *testing.T) {
	r := NewRouter()
	r.Handle(`subscribe`, func(hc *HandlerContext) error { return nil })

	assert.False(t, dispatch(r, "bogusEvent"))
	assert.False(t, dispatch(r, "subscribeExtra"), "patterns are anchored")
}

func TestRouterReportsHandlerError(t *testing.T) {
	r := NewRouter()
	boom := errors.New("boom")
	var reported error
	r.ReportError = func(p *Peer, event string, err error) { reported = err }
	r.Handle(`fail`, func(hc *HandlerContext) error { return boom })

	require.True(t, dispatch(r, "fail"))
	assert.Equal(t, boom, reported)
}

func TestRouterContainsPanics(t *testing.T) {
	r := NewRouter()
	var reported []string
	r.ReportError = func(p *Peer, event string, err error) {
		reported = append(reported, err.Error())
	}
	var ranAfter bool
	r.Handle(`explode`, func(hc *HandlerContext) error { panic("kaboom") })
	r.Handle(`explode`, func(hc *HandlerContext) error {
		ranAfter = true
		return nil
	})

	require.True(t, dispatch(r, "explode"))
	assert.True(t, ranAfter, "a panicking handler must not stop the scan")
	require.Len(t, reported, 1)
	assert.Equal(t, "internal error", reported[0])
}

func TestPeerSendDropsWhenQueueFull(t *testing.T) {
	p := NewPeer("tester", nil)
	// Nothing drains the queue; overfilling must not block.
	for i := 0; i < 200; i++ {
		p.Send("lobbyState", map[string]int{"i": i})
	}
	assert.Len(t, p.out, 64)
}
