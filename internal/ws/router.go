// internal/ws/router.go
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// HandlerContext carries one inbound message through dispatch.
type HandlerContext struct {
	Ctx     context.Context
	Peer    *Peer
	Event   string
	Message json.RawMessage // the full inbound frame, for payload decoding
}

// HandlerFunc processes one event occurrence. A returned error is reported to
// the peer without tearing the connection down.
type HandlerFunc func(hc *HandlerContext) error

type route struct {
	pattern *regexp.Regexp
	handler HandlerFunc
}

// Router dispatches inbound events to handlers by regular-expression match on
// the event name. Matching is a linear scan in registration order, and every
// matching handler runs; a handler failure (error or panic) is contained to
// that handler and the scan continues.
type Router struct {
	taps   []HandlerFunc
	routes []route

	// ReportError delivers a handler failure to the peer. The default sends
	// an error event carrying the error text.
	ReportError func(p *Peer, event string, err error)
}

func NewRouter() *Router {
	return &Router{
		ReportError: func(p *Peer, event string, err error) {
			p.Send("error", map[string]string{"text": err.Error()})
		},
	}
}

// Tap registers an observer that runs for every inbound event, before any
// routed handler. Taps never count as a match, so an event only a tap saw is
// still unrecognized.
func (r *Router) Tap(h HandlerFunc) {
	r.taps = append(r.taps, h)
}

// Handle registers a handler for event names matching pattern. The pattern is
// anchored; panics on an invalid expression, which is a programmer error.
func (r *Router) Handle(pattern string, h HandlerFunc) {
	re := regexp.MustCompile("^(?:" + pattern + ")$")
	r.routes = append(r.routes, route{pattern: re, handler: h})
}

// Dispatch runs every handler whose pattern matches hc.Event. Returns false
// when no handler matched.
func (r *Router) Dispatch(hc *HandlerContext) bool {
	for _, tap := range r.taps {
		r.run(tap, hc)
	}
	matched := false
	for _, rt := range r.routes {
		if !rt.pattern.MatchString(hc.Event) {
			continue
		}
		matched = true
		r.run(rt.handler, hc)
	}
	return matched
}

// run invokes a single handler, converting panics into reported errors so one
// bad handler cannot take the connection down.
func (r *Router) run(h HandlerFunc, hc *HandlerContext) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("Handler panic on event %q from %s: %v", hc.Event, hc.Peer.Nickname, rec)
			r.ReportError(hc.Peer, hc.Event, fmt.Errorf("internal error"))
		}
	}()
	if err := h(hc); err != nil {
		r.ReportError(hc.Peer, hc.Event, err)
	}
}
