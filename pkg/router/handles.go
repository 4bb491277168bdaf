// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Listener binds a new listener for a message type.
//
// Returns an AppCookie when successful, mctp.ErrAddrInUse when a listener for this message type already exists and
// mctp.ErrNoSpace when all listener slots are occupied.
func (r *Router) Listener(typ mctp.MsgType) (mctp.AppCookie, error) {
	for _, l := range r.listeners {
		if l.used && l.typ == typ {
			return 0, fmt.Errorf("listener for %v: %w", typ, mctp.ErrAddrInUse)
		}
	}

	for i := range r.listeners {
		if !r.listeners[i].used {
			r.listeners[i] = listenerHandle{used: true, typ: typ}

			cookie := r.listenerCookie(i)
			log.WithFields(log.Fields{
				"type":   typ,
				"cookie": cookie,
			}).Debug("Bound listener")
			return cookie, nil
		}
	}

	return 0, fmt.Errorf("%d listeners are bound: %w", len(r.listeners), mctp.ErrNoSpace)
}

// Req binds a new request context for a destination EID.
//
// Returns mctp.ErrNoSpace when all request slots are occupied.
func (r *Router) Req(eid mctp.Eid) (mctp.AppCookie, error) {
	for i := range r.requests {
		if !r.requests[i].used {
			r.requests[i] = requestHandle{used: true, eid: eid}

			cookie := r.requestCookie(i)
			log.WithFields(log.Fields{
				"eid":    eid,
				"cookie": cookie,
			}).Debug("Bound request")
			return cookie, nil
		}
	}

	return 0, fmt.Errorf("%d requests are bound: %w", len(r.requests), mctp.ErrNoSpace)
}

// Unbind a listener or request, which frees its slot.
//
// An outstanding request is cancelled, a late response will not be delivered. Messages not yet received by Recv are
// discarded. Returns mctp.ErrBadArgument for malformed or unbound AppCookies.
func (r *Router) Unbind(cookie mctp.AppCookie) error {
	if i, ok := r.listenerIndex(cookie); ok {
		if !r.listeners[i].used {
			return fmt.Errorf("listener %v is not bound: %w", cookie, mctp.ErrBadArgument)
		}

		r.listeners[i] = listenerHandle{}
	} else if i, ok := r.requestIndex(cookie); ok {
		req := r.requests[i]
		if !req.used {
			return fmt.Errorf("request %v is not bound: %w", cookie, mctp.ErrBadArgument)
		}

		if req.pending {
			log.WithFields(log.Fields{
				"cookie": cookie,
				"eid":    req.lastDest,
				"tag":    req.lastTag,
			}).Debug("Cancelling outstanding request")

			r.stack.CancelFlow(req.lastDest, req.lastTag.Value)
		}

		// Earlier requests of this handle may still be in flight as well.
		r.stack.CancelCookie(cookie)

		r.requests[i] = requestHandle{}
	} else {
		return fmt.Errorf("%v is out of range: %w", cookie, mctp.ErrBadArgument)
	}

	r.stack.DiscardDeferred(cookie)

	log.WithField("cookie", cookie).Debug("Unbound handle")
	return nil
}

// lookupRequest returns the bound request for this AppCookie, or nil.
func (r *Router) lookupRequest(cookie mctp.AppCookie) *requestHandle {
	if i, ok := r.requestIndex(cookie); ok && r.requests[i].used {
		return &r.requests[i]
	}
	return nil
}

// The AppCookie's value space is partitioned: listeners are enumerated from 0 to len(listeners)-1, requests from
// len(listeners) to len(listeners)+len(requests)-1. Each decoding checks these boundaries.

// listenerCookie creates the AppCookie for a listener table index.
func (r *Router) listenerCookie(i int) mctp.AppCookie {
	return mctp.AppCookie(i)
}

// requestCookie creates the AppCookie for a request table index.
func (r *Router) requestCookie(i int) mctp.AppCookie {
	return mctp.AppCookie(i + len(r.listeners))
}

// listenerIndex returns the listener table index of an AppCookie, if it is a listener's one.
func (r *Router) listenerIndex(cookie mctp.AppCookie) (int, bool) {
	if uint(cookie) < uint(len(r.listeners)) {
		return int(cookie), true
	}
	return 0, false
}

// requestIndex returns the request table index of an AppCookie, if it is a request's one.
func (r *Router) requestIndex(cookie mctp.AppCookie) (int, bool) {
	l := uint(len(r.listeners))
	if c := uint(cookie); c >= l && c < l+uint(len(r.requests)) {
		return int(c - l), true
	}
	return 0, false
}
