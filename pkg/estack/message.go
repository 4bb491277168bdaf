// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package estack

import (
	"fmt"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Message is a completely reassembled MCTP message.
//
// A Message is only a view into one of the Stack's reassembly buffers. Its Payload might be overwritten by the next
// call into the Stack, except if the Message was retained. Retained Messages can be fetched again later on by
// their AppCookie.
type Message struct {
	Source mctp.Eid
	Dest   mctp.Eid
	Type   mctp.MsgType
	IC     mctp.MsgIC
	Tag    mctp.Tag

	// Payload excludes the message header byte.
	Payload []byte

	r *reassembler
}

// Cookie returns the AppCookie attached to this Message, if any.
func (m *Message) Cookie() (cookie mctp.AppCookie, ok bool) {
	return m.r.cookie, m.r.hasCookie
}

// SetCookie attaches an AppCookie to this Message.
func (m *Message) SetCookie(cookie mctp.AppCookie) {
	m.r.cookie = cookie
	m.r.hasCookie = true
}

// Retain moves this Message into the Stack's deferred queue. Otherwise it would be discarded with the next call into
// the Stack.
func (m *Message) Retain() {
	m.r.retain()
}

func (m *Message) String() string {
	return fmt.Sprintf("Message(%v -> %v, Type: %v, IC: %t, Tag: %v, Length: %d)",
		m.Source, m.Dest, m.Type, bool(m.IC), m.Tag, len(m.Payload))
}
