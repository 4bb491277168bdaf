// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	log "github.com/sirupsen/logrus"
)

// Inbound provides an incoming packet to the Router.
//
// This expects a single MCTP packet, without a transport binding header. Only parsing or reassembly errors of the
// stack are returned. Messages which are not addressed to this endpoint or which have no matching listener or request
// are discarded silently.
func (r *Router) Inbound(pkt []byte) error {
	msg, err := r.stack.Receive(pkt)
	if err != nil {
		return err
	} else if msg == nil {
		return nil
	}

	logger := log.WithField("message", msg)

	if msg.Dest != r.stack.Eid() {
		logger.Debug("Dropping message addressed to another EID")
		return nil
	}

	if msg.Tag.IsOwner() {
		// A new request, look for a listener.
		for i, l := range r.listeners {
			if l.used && l.typ == msg.Type {
				msg.SetCookie(r.listenerCookie(i))
				msg.Retain()
				return nil
			}
		}

		logger.Debug("Dropping request without a listener")
		return nil
	}

	// A response, the stack has attached the request's cookie from sending.
	if cookie, ok := msg.Cookie(); ok {
		if req := r.lookupRequest(cookie); req != nil {
			if req.pending && req.lastDest == msg.Source && req.lastTag.Value == msg.Tag.Value {
				req.pending = false
			}

			msg.Retain()
			return nil
		}
	}

	// This might happen if this endpoint should have routed the message to another bus. Bridging is not supported.
	logger.Debug("Dropping response without a bound request")
	return nil
}
