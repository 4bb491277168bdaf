// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package estack

import (
	"fmt"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Fragmenter splits an outgoing message into packets of at most the MTU's size.
//
// A Fragmenter is created by the Stack's StartSend method, which has already chosen the tag. The transport binding
// calls Fragment or FragmentVectored with the same payload until the last packet was returned.
type Fragmenter struct {
	header    mctp.Header
	msgHeader byte
	mtu       int

	cookie    mctp.AppCookie
	hasCookie bool

	started  bool
	finished bool
	seq      uint8

	// bufIdx and bufOff point to the next unsent payload byte.
	bufIdx int
	bufOff int
}

func newFragmenter(source, dest mctp.Eid, tag mctp.Tag, typ mctp.MsgType, ic mctp.MsgIC, mtu int) *Fragmenter {
	return &Fragmenter{
		header: mctp.Header{
			Dest:   dest,
			Source: source,
			Tag:    tag,
		},
		msgHeader: mctp.MessageHeader(typ, ic),
		mtu:       mtu,
	}
}

// Fragment creates the next packet for a single buffer payload. See FragmentVectored.
func (f *Fragmenter) Fragment(payload []byte, buf []byte) (pkt []byte, finished bool, err error) {
	return f.FragmentVectored([][]byte{payload}, buf)
}

// FragmentVectored writes the next packet into buf and returns the used part of buf. The packet's size is limited by
// both the MTU and buf's length. The finished flag is set for the last packet of the message.
//
// The payload must be the same for all calls on this Fragmenter.
func (f *Fragmenter) FragmentVectored(payload [][]byte, buf []byte) (pkt []byte, finished bool, err error) {
	if f.finished {
		err = fmt.Errorf("fragmenter was already finished: %w", mctp.ErrBadArgument)
		return
	}

	size := f.mtu
	if len(buf) < size {
		size = len(buf)
	}
	if size <= mctp.HeaderLen {
		err = fmt.Errorf("buffer of %d bytes cannot hold a packet: %w", size, mctp.ErrNoSpace)
		return
	}

	out := buf[mctp.HeaderLen:size]
	n := 0
	if !f.started {
		out[0] = f.msgHeader
		n = 1
	}

	for f.bufIdx < len(payload) && n < len(out) {
		c := copy(out[n:], payload[f.bufIdx][f.bufOff:])
		n += c
		f.bufOff += c

		if f.bufOff == len(payload[f.bufIdx]) {
			f.bufIdx++
			f.bufOff = 0
		}
	}

	// Trailing empty buffers must not result in an empty packet.
	for f.bufIdx < len(payload) && len(payload[f.bufIdx]) == 0 {
		f.bufIdx++
	}

	h := f.header
	h.SOM = !f.started
	h.EOM = f.bufIdx >= len(payload)
	h.Seq = f.seq
	h.Put(buf)

	f.started = true
	f.finished = h.EOM
	f.seq = mctp.NextSeq(f.seq)

	pkt = buf[:mctp.HeaderLen+n]
	finished = f.finished
	return
}

// Tag used for this message.
func (f *Fragmenter) Tag() mctp.Tag {
	return f.header.Tag
}

// Dest is the destination EID of this message.
func (f *Fragmenter) Dest() mctp.Eid {
	return f.header.Dest
}

// Cookie returns the AppCookie passed to StartSend, if any.
func (f *Fragmenter) Cookie() (cookie mctp.AppCookie, ok bool) {
	return f.cookie, f.hasCookie
}

// IsFinished indicates that the last packet was created.
func (f *Fragmenter) IsFinished() bool {
	return f.finished
}

func (f *Fragmenter) String() string {
	return fmt.Sprintf("Fragmenter(%v -> %v, Tag: %v, MTU: %d)",
		f.header.Source, f.header.Dest, f.header.Tag, f.mtu)
}
