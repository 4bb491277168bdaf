// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package node

import (
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Listen binds a listener for a message type. All incoming requests of this type are passed to the Handler.
func (n *Node) Listen(typ mctp.MsgType, h Handler) (cookie mctp.AppCookie, err error) {
	if execErr := n.exec(func() {
		if cookie, err = n.router.Listener(typ); err == nil {
			n.subscribers[cookie] = newSubscriber(cookie, h)
		}
	}); execErr != nil {
		err = execErr
	}
	return
}

// Request binds a request context for a remote EID. All responses to requests sent with its AppCookie are passed to
// the Handler.
func (n *Node) Request(eid mctp.Eid, h Handler) (cookie mctp.AppCookie, err error) {
	if execErr := n.exec(func() {
		if cookie, err = n.router.Req(eid); err == nil {
			n.subscribers[cookie] = newSubscriber(cookie, h)
		}
	}); execErr != nil {
		err = execErr
	}
	return
}

// Unbind a listener or request. Its Handler will not be called afterwards.
func (n *Node) Unbind(cookie mctp.AppCookie) (err error) {
	if execErr := n.exec(func() {
		if err = n.router.Unbind(cookie); err == nil {
			if s, ok := n.subscribers[cookie]; ok {
				s.close()
				delete(n.subscribers, cookie)
			}
		}
	}); execErr != nil {
		err = execErr
	}
	return
}

// Send a message, see router.Router.Send.
func (n *Node) Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
	payload []byte) (sent mctp.Tag, err error) {
	if execErr := n.exec(func() {
		sent, err = n.router.Send(eid, typ, tag, ic, cookie, payload)
	}); execErr != nil {
		err = execErr
	}
	return
}

// Eid returns the Node's current EID.
func (n *Node) Eid() (eid mctp.Eid, err error) {
	err = n.exec(func() {
		eid = n.router.Eid()
	})
	return
}

// SetEid changes the Node's EID.
func (n *Node) SetEid(eid mctp.Eid) (err error) {
	if execErr := n.exec(func() {
		err = n.router.SetEid(eid)
	}); execErr != nil {
		err = execErr
	}
	return
}
