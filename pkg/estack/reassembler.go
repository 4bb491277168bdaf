// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package estack

import (
	"fmt"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

type reassemblerState uint8

const (
	// stateFree marks an unused reassembler.
	stateFree reassemblerState = iota

	// stateActive reassemblers are collecting packets.
	stateActive

	// stateDone reassemblers hold a complete Message, which was handed out. They are freed with the next call into
	// the Stack.
	stateDone

	// stateRetained reassemblers hold a complete Message in the deferred queue.
	stateRetained
)

// reassembler collects the packets of one incoming message.
//
// Each message is identified by its source EID and its tag, including the tag owner bit. A packet's sequence
// number must be the successor of its predecessor's one; otherwise the message is discarded.
type reassembler struct {
	stack *Stack
	state reassemblerState

	source mctp.Eid
	dest   mctp.Eid
	tag    mctp.Tag
	typ    mctp.MsgType
	ic     mctp.MsgIC

	nextSeq uint8

	// stamp is the reassembly start or the retention time, depending on the state.
	stamp uint64
	// order sorts retained messages by their retention.
	order uint64

	cookie    mctp.AppCookie
	hasCookie bool

	length int
	buf    [MaxMessageSize]byte

	msg Message
}

// matches checks if an active reassembler belongs to this source and tag.
func (r *reassembler) matches(source mctp.Eid, tag mctp.Tag) bool {
	return r.state == stateActive && r.source == source && r.tag == tag
}

// start a new reassembly based on a start of message packet's header and its message header byte.
func (r *reassembler) start(h mctp.Header, msgHeader byte, now uint64) {
	r.state = stateActive
	r.source = h.Source
	r.dest = h.Dest
	r.tag = h.Tag
	r.typ, r.ic = mctp.ParseMessageHeader(msgHeader)
	r.nextSeq = h.Seq
	r.stamp = now
	r.order = 0
	r.cookie = 0
	r.hasCookie = false
	r.length = 0
}

// readPacket appends the next packet's payload.
func (r *reassembler) readPacket(h mctp.Header, payload []byte) error {
	if h.Seq != r.nextSeq {
		return fmt.Errorf("expected sequence number %d, got %d: %w", r.nextSeq, h.Seq, mctp.ErrInvalidInput)
	}

	if r.length+len(payload) > len(r.buf) {
		return fmt.Errorf("message exceeds %d bytes: %w", len(r.buf), mctp.ErrNoSpace)
	}

	r.length += copy(r.buf[r.length:], payload)
	r.nextSeq = mctp.NextSeq(h.Seq)
	return nil
}

// finish marks a reassembly as done and returns its Message.
func (r *reassembler) finish() *Message {
	r.state = stateDone
	r.msg = Message{
		Source:  r.source,
		Dest:    r.dest,
		Type:    r.typ,
		IC:      r.ic,
		Tag:     r.tag,
		Payload: r.buf[:r.length],
		r:       r,
	}
	return &r.msg
}

func (r *reassembler) retain() {
	if r.state != stateDone {
		return
	}

	r.state = stateRetained
	r.stamp = r.stack.now
	r.stack.retainCounter++
	r.order = r.stack.retainCounter
}

func (r *reassembler) reset() {
	r.state = stateFree
	r.length = 0
	r.hasCookie = false
}

func (r *reassembler) String() string {
	return fmt.Sprintf("reassembler(%v, Tag: %v, Length: %d)", r.source, r.tag, r.length)
}
