// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package estack

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

const (
	// MaxMessageSize is the largest reassembled message payload, excluding the message header byte.
	MaxMessageSize int = 1024

	// NumReassemblers is the amount of messages being reassembled or retained at the same time.
	NumReassemblers int = 16

	// NumFlows is the amount of simultaneously allocated tags for outgoing requests.
	NumFlows int = 64

	// ReassemblyTimeout is the time in milliseconds for a message to be completely received.
	ReassemblyTimeout uint64 = 6000

	// DeferredTimeout is the time in milliseconds for a retained message to be fetched.
	DeferredTimeout uint64 = 6000

	// FlowTimeout is the time in milliseconds an expiring tag stays allocated without a response.
	FlowTimeout uint64 = 6000

	// MaxUpdateInterval caps the interval returned by Update.
	MaxUpdateInterval uint64 = 100
)

// flow is a tag allocated by this endpoint towards some peer. Responses are only accepted for known flows.
type flow struct {
	used bool

	peer mctp.Eid
	tag  mctp.TagValue

	cookie    mctp.AppCookie
	hasCookie bool

	expires bool
	stamp   uint64
}

// Stack is a single endpoint MCTP stack with a fixed memory footprint.
type Stack struct {
	eid mctp.Eid
	now uint64

	reassemblers [NumReassemblers]reassembler
	flows        [NumFlows]flow

	nextTag       mctp.TagValue
	retainCounter uint64
}

// NewStack creates a new Stack for the local EID, starting at the given millisecond timestamp.
func NewStack(eid mctp.Eid, nowMillis uint64) *Stack {
	s := &Stack{
		eid: eid,
		now: nowMillis,
	}

	for i := range s.reassemblers {
		s.reassemblers[i].stack = s
	}

	return s
}

// Eid is the current local EID.
func (s *Stack) Eid() mctp.Eid {
	return s.eid
}

// SetEid changes the local EID. Only the null EID and normal EIDs are accepted.
func (s *Stack) SetEid(eid mctp.Eid) error {
	if eid != mctp.EidNull && !eid.IsNormal() {
		return fmt.Errorf("%v cannot be assigned: %w", eid, mctp.ErrBadArgument)
	}

	log.WithFields(log.Fields{
		"old": s.eid,
		"new": eid,
	}).Debug("Changing local EID")

	s.eid = eid
	return nil
}

// releaseDone frees all reassemblers of handed out, but not retained Messages.
func (s *Stack) releaseDone() {
	for i := range s.reassemblers {
		if s.reassemblers[i].state == stateDone {
			s.reassemblers[i].reset()
		}
	}
}

func (s *Stack) lookupReassembler(source mctp.Eid, tag mctp.Tag) *reassembler {
	for i := range s.reassemblers {
		if s.reassemblers[i].matches(source, tag) {
			return &s.reassemblers[i]
		}
	}
	return nil
}

func (s *Stack) freeReassembler() *reassembler {
	for i := range s.reassemblers {
		if s.reassemblers[i].state == stateFree {
			return &s.reassemblers[i]
		}
	}
	return nil
}

func (s *Stack) lookupFlow(peer mctp.Eid, tag mctp.TagValue) *flow {
	for i := range s.flows {
		if f := &s.flows[i]; f.used && f.peer == peer && f.tag == tag {
			return f
		}
	}
	return nil
}

func (s *Stack) freeFlow() *flow {
	for i := range s.flows {
		if !s.flows[i].used {
			return &s.flows[i]
		}
	}
	return nil
}

// Receive processes a single incoming packet without any transport binding header.
//
// A Message is returned when this packet completes a message; otherwise the Message is nil. Packets which do not
// belong to any known message or flow are dropped without an error. Malformed packets and failed reassemblies result
// in an error, wrapping one of the mctp package's errors.
//
// The returned Message must be retained to survive the next call into this Stack.
func (s *Stack) Receive(pkt []byte) (*Message, error) {
	s.releaseDone()

	h, err := mctp.ParseHeader(pkt)
	if err != nil {
		return nil, err
	}
	payload := pkt[mctp.HeaderLen:]

	logger := log.WithField("header", h)

	if !h.Tag.Owner && s.lookupFlow(h.Source, h.Tag.Value) == nil {
		logger.Debug("Dropping response packet without a known flow")
		return nil, nil
	}

	var r *reassembler
	if h.SOM {
		if r = s.lookupReassembler(h.Source, h.Tag); r != nil {
			logger.WithField("reassembler", r).Debug("Start of message restarts an unfinished reassembly")
		} else if r = s.freeReassembler(); r == nil {
			return nil, fmt.Errorf("no free reassembler for %v: %w", h, mctp.ErrNoSpace)
		}

		r.start(h, payload[0], s.now)
		payload = payload[1:]
	} else if r = s.lookupReassembler(h.Source, h.Tag); r == nil {
		logger.Debug("Dropping packet without a started reassembly")
		return nil, nil
	}

	if err := r.readPacket(h, payload); err != nil {
		logger.WithError(err).WithField("reassembler", r).Debug("Aborting reassembly")
		r.reset()
		return nil, err
	}

	if !h.EOM {
		return nil, nil
	}

	msg := r.finish()

	// Responses to another EID, e.g., the previous one, leave the flow intact.
	if !h.Tag.Owner && h.Dest == s.eid {
		if f := s.lookupFlow(h.Source, h.Tag.Value); f != nil {
			if f.hasCookie {
				msg.SetCookie(f.cookie)
			}
			f.used = false
		}
	}

	logger.WithField("message", msg).Debug("Received message")
	return msg, nil
}

// SendParams configures an outgoing message for StartSend.
type SendParams struct {
	Dest mctp.Eid
	Type mctp.MsgType

	// Tag is allocated for a new request if nil. An owned tag is used as the request's tag, an unowned one marks a
	// response.
	Tag *mctp.Tag

	// TagExpires lets an allocated tag be freed after FlowTimeout, even without a response.
	TagExpires bool

	IC mctp.MsgIC

	// Mtu is the maximum packet size including the MCTP header, excluding any transport binding header.
	Mtu int

	// Cookie is attached to the response's Message.
	Cookie *mctp.AppCookie
}

// StartSend prepares an outgoing message and returns a Fragmenter to create its packets.
func (s *Stack) StartSend(params SendParams) (*Fragmenter, error) {
	s.releaseDone()

	if params.Mtu <= mctp.HeaderLen {
		return nil, fmt.Errorf("MTU of %d is too small: %w", params.Mtu, mctp.ErrBadArgument)
	}

	var tag mctp.Tag
	switch {
	case params.Tag == nil:
		if t, err := s.allocateTag(params.Dest); err != nil {
			return nil, err
		} else {
			tag = mctp.OwnedTag(t)
		}

	case params.Tag.Owner:
		tag = mctp.OwnedTag(params.Tag.Value)

	default:
		tag = mctp.UnownedTag(params.Tag.Value)
	}

	if tag.Owner {
		f := s.lookupFlow(params.Dest, tag.Value)
		if f == nil {
			if f = s.freeFlow(); f == nil {
				return nil, fmt.Errorf("no free flow for %v: %w", params.Dest, mctp.ErrNoSpace)
			}
		}

		*f = flow{
			used:    true,
			peer:    params.Dest,
			tag:     tag.Value,
			expires: params.TagExpires,
			stamp:   s.now,
		}
		if params.Cookie != nil {
			f.cookie = *params.Cookie
			f.hasCookie = true
		}
	}

	frag := newFragmenter(s.eid, params.Dest, tag, params.Type, params.IC, params.Mtu)
	if params.Cookie != nil {
		frag.cookie = *params.Cookie
		frag.hasCookie = true
	}
	return frag, nil
}

// allocateTag finds an unused tag value towards the peer, rotating through all values.
func (s *Stack) allocateTag(peer mctp.Eid) (mctp.TagValue, error) {
	for i := mctp.TagValue(0); i <= mctp.TagValueMax; i++ {
		t := (s.nextTag + i) & mctp.TagValueMax
		if s.lookupFlow(peer, t) == nil {
			s.nextTag = (t + 1) & mctp.TagValueMax
			return t, nil
		}
	}

	return 0, fmt.Errorf("all tags towards %v are in use: %w", peer, mctp.ErrTagUnavailable)
}

// CancelFlow releases an allocated tag. Unfinished or retained responses for this tag are discarded and later
// arriving ones are dropped.
func (s *Stack) CancelFlow(peer mctp.Eid, tag mctp.TagValue) {
	s.releaseDone()

	if f := s.lookupFlow(peer, tag); f != nil {
		f.used = false
	}

	response := mctp.UnownedTag(tag)
	for i := range s.reassemblers {
		r := &s.reassemblers[i]
		if r.state != stateFree && r.source == peer && r.tag == response {
			log.WithField("reassembler", r).Debug("Discarding response of a cancelled flow")
			r.reset()
		}
	}
}

// CancelCookie releases all flows started with this AppCookie. Their unfinished responses and all retained Messages
// with this AppCookie are discarded, later arriving responses are dropped.
func (s *Stack) CancelCookie(cookie mctp.AppCookie) {
	s.releaseDone()

	for i := range s.flows {
		f := &s.flows[i]
		if !f.used || !f.hasCookie || f.cookie != cookie {
			continue
		}

		log.WithFields(log.Fields{
			"peer":   f.peer,
			"tag":    f.tag,
			"cookie": cookie,
		}).Debug("Cancelling flow")
		s.CancelFlow(f.peer, f.tag)
	}

	s.DiscardDeferred(cookie)
}

// GetDeferredByCookie returns the oldest retained Message with one of the given AppCookies, or nil.
//
// The Message is removed from the deferred queue and is valid until the next call into this Stack, except if it
// gets retained again.
func (s *Stack) GetDeferredByCookie(cookies ...mctp.AppCookie) *Message {
	s.releaseDone()

	var oldest *reassembler
	for i := range s.reassemblers {
		r := &s.reassemblers[i]
		if r.state != stateRetained || !r.hasCookie || !containsCookie(cookies, r.cookie) {
			continue
		}
		if oldest == nil || r.order < oldest.order {
			oldest = r
		}
	}

	if oldest == nil {
		return nil
	}

	oldest.state = stateDone
	return &oldest.msg
}

// DiscardDeferred drops all retained Messages with this AppCookie.
func (s *Stack) DiscardDeferred(cookie mctp.AppCookie) {
	for i := range s.reassemblers {
		r := &s.reassemblers[i]
		if r.state == stateRetained && r.hasCookie && r.cookie == cookie {
			r.reset()
		}
	}
}

func containsCookie(cookies []mctp.AppCookie, cookie mctp.AppCookie) bool {
	for _, c := range cookies {
		if c == cookie {
			return true
		}
	}
	return false
}

// Update advances the Stack's clock and expires outdated reassemblies, retained Messages and flows.
//
// The returned value is the time in milliseconds until Update should be called next.
func (s *Stack) Update(nowMillis uint64) (uint64, error) {
	if nowMillis < s.now {
		return 0, fmt.Errorf("time went backwards from %d to %d: %w", s.now, nowMillis, mctp.ErrInvalidInput)
	}

	s.releaseDone()
	s.now = nowMillis

	next := MaxUpdateInterval
	expired := func(stamp, timeout uint64) bool {
		deadline := stamp + timeout
		if deadline <= nowMillis {
			return true
		}
		if remaining := deadline - nowMillis; remaining < next {
			next = remaining
		}
		return false
	}

	for i := range s.reassemblers {
		r := &s.reassemblers[i]
		switch r.state {
		case stateActive:
			if expired(r.stamp, ReassemblyTimeout) {
				log.WithField("reassembler", r).Debug("Reassembly timed out")
				r.reset()
			}

		case stateRetained:
			if expired(r.stamp, DeferredTimeout) {
				log.WithField("reassembler", r).Debug("Retained message timed out")
				r.reset()
			}
		}
	}

	for i := range s.flows {
		f := &s.flows[i]
		if f.used && f.expires && expired(f.stamp, FlowTimeout) {
			log.WithFields(log.Fields{
				"peer": f.peer,
				"tag":  f.tag,
			}).Debug("Flow timed out")
			f.used = false
		}
	}

	return next, nil
}
