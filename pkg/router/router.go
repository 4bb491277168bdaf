// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

const (
	// DefaultListenerHandles is a reasonable listener table size.
	DefaultListenerHandles int = 8

	// DefaultRequestHandles is a reasonable request table size.
	DefaultRequestHandles int = 8
)

// listenerHandle binds a message type.
type listenerHandle struct {
	used bool
	typ  mctp.MsgType
}

// requestHandle binds a destination EID.
type requestHandle struct {
	used bool
	eid  mctp.Eid

	// lastTag is the tag of the last request sent with this handle to lastDest, which might differ from eid. It is
	// pending until a response was received.
	lastTag  mctp.Tag
	lastDest mctp.Eid
	pending  bool
}

// Router is an MCTP stack with routing for a single port / bus.
type Router struct {
	stack  *estack.Stack
	sender Sender

	// listeners and requests are the handle tables. An entry's index is used to construct its AppCookie.
	listeners []listenerHandle
	requests  []requestHandle
}

// NewRouter creates a new Router for the local EID, routing outbound traffic to the Sender.
//
// The handle tables are created once with maxListeners resp. maxRequests entries and never grow.
func NewRouter(eid mctp.Eid, nowMillis uint64, outbound Sender, maxListeners, maxRequests int) *Router {
	return &Router{
		stack:     estack.NewStack(eid, nowMillis),
		sender:    outbound,
		listeners: make([]listenerHandle, maxListeners),
		requests:  make([]requestHandle, maxRequests),
	}
}

// Update the stack's timers.
//
// Returns an interval in milliseconds in which the next call to Update should be issued.
//
// Note: It is the obligation of the caller to wake up receivers waiting for expired messages.
func (r *Router) Update(nowMillis uint64) (uint64, error) {
	return r.stack.Update(nowMillis)
}

// Eid is the currently configured EID of this endpoint.
func (r *Router) Eid() mctp.Eid {
	return r.stack.Eid()
}

// SetEid changes the EID of this endpoint.
func (r *Router) SetEid(eid mctp.Eid) error {
	return r.stack.SetEid(eid)
}

// Recv returns the next Message for a listener's or request's AppCookie, or nil if none is available.
//
// The Message is valid until the next call into this Router.
func (r *Router) Recv(cookie mctp.AppCookie) *estack.Message {
	return r.stack.GetDeferredByCookie(cookie)
}

// Handles returns the amount of bound listeners and requests.
func (r *Router) Handles() (listeners, requests int) {
	for _, l := range r.listeners {
		if l.used {
			listeners++
		}
	}
	for _, req := range r.requests {
		if req.used {
			requests++
		}
	}
	return
}
