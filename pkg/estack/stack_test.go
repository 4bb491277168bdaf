// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package estack

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

// packets creates all packets of a Fragmenter.
func packets(t *testing.T, frag *Fragmenter, payload [][]byte, mtu int) (pkts [][]byte) {
	for i := 0; ; i++ {
		buf := make([]byte, mtu)
		pkt, fin, err := frag.FragmentVectored(payload, buf)
		if err != nil {
			t.Fatal(err)
		}

		pkts = append(pkts, pkt)
		if fin {
			return
		}

		if i > MaxMessageSize {
			t.Fatalf("Fragmenter did not finish after %d packets", i)
		}
	}
}

// deliver all packets to a Stack and expect a Message for the last one.
func deliver(t *testing.T, s *Stack, pkts [][]byte) *Message {
	for i, pkt := range pkts {
		msg, err := s.Receive(pkt)
		if err != nil {
			t.Fatal(err)
		}

		if i < len(pkts)-1 && msg != nil {
			t.Fatalf("Message finished at packet %d/%d", i, len(pkts))
		} else if i == len(pkts)-1 {
			if msg == nil {
				t.Fatal("Last packet did not finish the Message")
			}
			return msg
		}
	}
	return nil
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestFragmenterPacketSizes(t *testing.T) {
	tests := []struct {
		payload int
		mtu     int
		sizes   []int
	}{
		{0, 64, []int{5}},
		{1, 64, []int{6}},
		{59, 64, []int{64}},
		{60, 64, []int{64, 5}},
		{300, 255, []int{255, 54}},
		{10, 6, []int{6, 6, 6, 6, 6, 5}},
	}

	for _, test := range tests {
		s := NewStack(8, 0)
		frag, err := s.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: test.mtu})
		if err != nil {
			t.Fatal(err)
		}

		pkts := packets(t, frag, [][]byte{pattern(test.payload)}, test.mtu)
		if len(pkts) != len(test.sizes) {
			t.Fatalf("%d bytes with MTU %d: expected %d packets, got %d",
				test.payload, test.mtu, len(test.sizes), len(pkts))
		}

		for i, pkt := range pkts {
			if len(pkt) != test.sizes[i] {
				t.Fatalf("%d bytes with MTU %d: packet %d has %d bytes instead of %d",
					test.payload, test.mtu, i, len(pkt), test.sizes[i])
			}

			h, err := mctp.ParseHeader(pkt)
			if err != nil {
				t.Fatal(err)
			}
			if h.SOM != (i == 0) || h.EOM != (i == len(pkts)-1) || h.Seq != uint8(i%4) {
				t.Fatalf("packet %d has an unexpected header %v", i, h)
			}
		}

		if !frag.IsFinished() {
			t.Fatal("Fragmenter is not finished")
		}
		if _, _, err := frag.Fragment(nil, make([]byte, test.mtu)); !errors.Is(err, mctp.ErrBadArgument) {
			t.Fatalf("finished Fragmenter returned %v", err)
		}
	}
}

func TestFragmentReassembleVectored(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	payload := [][]byte{pattern(10), nil, pattern(33), pattern(7), {}}
	expected := bytes.Join(payload, nil)

	frag, err := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypeVendorPCI, IC: true, Mtu: 16})
	if err != nil {
		t.Fatal(err)
	}

	msg := deliver(t, b, packets(t, frag, payload, 16))
	if !bytes.Equal(msg.Payload, expected) {
		t.Fatalf("expected payload %x, got %x", expected, msg.Payload)
	}
	if msg.Source != 8 || msg.Dest != 9 {
		t.Fatalf("unexpected addresses of %v", msg)
	}
	if msg.Type != mctp.MsgTypeVendorPCI || !bool(msg.IC) {
		t.Fatalf("unexpected message header of %v", msg)
	}
	if !msg.Tag.IsOwner() || msg.Tag != frag.Tag() {
		t.Fatalf("expected tag %v, got %v", frag.Tag(), msg.Tag)
	}
	if _, ok := msg.Cookie(); ok {
		t.Fatal("request has a cookie")
	}
}

func TestReceiveSequenceError(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	frag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 8})
	pkts := packets(t, frag, [][]byte{pattern(20)}, 8)

	if _, err := b.Receive(pkts[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Receive(pkts[2]); !errors.Is(err, mctp.ErrInvalidInput) {
		t.Fatalf("skipped packet resulted in %v", err)
	}

	// The reassembly was aborted, following packets are silently dropped.
	for _, pkt := range pkts[3:] {
		if msg, err := b.Receive(pkt); err != nil || msg != nil {
			t.Fatalf("packet after abort resulted in %v, %v", msg, err)
		}
	}
}

func TestReceiveMessageTooLarge(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	frag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 255})
	pkts := packets(t, frag, [][]byte{pattern(MaxMessageSize + 1)}, 255)

	var lastErr error
	for _, pkt := range pkts {
		if _, err := b.Receive(pkt); err != nil {
			lastErr = err
		}
	}

	if !errors.Is(lastErr, mctp.ErrNoSpace) {
		t.Fatalf("oversized message resulted in %v", lastErr)
	}
}

func TestReceiveNoFreeReassembler(t *testing.T) {
	b := NewStack(9, 0)

	for i := 0; i <= NumReassemblers; i++ {
		pkt := make([]byte, mctp.HeaderLen+1)
		mctp.Header{Dest: 9, Source: mctp.Eid(10 + i), SOM: true, Tag: mctp.OwnedTag(0)}.Put(pkt)

		_, err := b.Receive(pkt)
		if i < NumReassemblers && err != nil {
			t.Fatalf("reassembly %d errored: %v", i, err)
		} else if i == NumReassemblers && !errors.Is(err, mctp.ErrNoSpace) {
			t.Fatalf("exhausted reassemblers resulted in %v", err)
		}
	}
}

func TestResponseCookie(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie := mctp.AppCookie(3)
	reqFrag, err := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypeSPDM, Mtu: 64, Cookie: &cookie})
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := reqFrag.Cookie(); !ok || c != cookie {
		t.Fatalf("Fragmenter has cookie %v", c)
	}

	req := deliver(t, b, packets(t, reqFrag, [][]byte{[]byte("request")}, 64))

	respTag := req.Tag.Response()
	respFrag, err := b.StartSend(SendParams{Dest: req.Source, Type: req.Type, Tag: &respTag, Mtu: 64})
	if err != nil {
		t.Fatal(err)
	}
	respPkts := packets(t, respFrag, [][]byte{[]byte("response")}, 64)

	resp := deliver(t, a, respPkts)
	if resp.Tag.IsOwner() || resp.Tag.Value != reqFrag.Tag().Value {
		t.Fatalf("unexpected response tag %v", resp.Tag)
	}
	if c, ok := resp.Cookie(); !ok || c != cookie {
		t.Fatalf("response has cookie %v, %t", c, ok)
	}

	// The flow is finished, a duplicate response must be dropped.
	if msg, err := a.Receive(respPkts[0]); err != nil || msg != nil {
		t.Fatalf("duplicate response resulted in %v, %v", msg, err)
	}
}

func TestTagExhaustion(t *testing.T) {
	s := NewStack(8, 0)

	used := map[mctp.TagValue]bool{}
	for i := 0; i <= int(mctp.TagValueMax); i++ {
		frag, err := s.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64})
		if err != nil {
			t.Fatal(err)
		}
		if used[frag.Tag().Value] {
			t.Fatalf("tag %v was allocated twice", frag.Tag())
		}
		used[frag.Tag().Value] = true
	}

	if _, err := s.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64}); !errors.Is(err, mctp.ErrTagUnavailable) {
		t.Fatalf("ninth tag resulted in %v", err)
	}

	if _, err := s.StartSend(SendParams{Dest: 10, Type: mctp.MsgTypePLDM, Mtu: 64}); err != nil {
		t.Fatalf("tag towards another peer errored: %v", err)
	}

	s.CancelFlow(9, 4)
	if frag, err := s.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64}); err != nil {
		t.Fatal(err)
	} else if frag.Tag() != mctp.OwnedTag(4) {
		t.Fatalf("expected the cancelled tag, got %v", frag.Tag())
	}
}

func TestStartSendSmallMtu(t *testing.T) {
	s := NewStack(8, 0)
	if _, err := s.StartSend(SendParams{Dest: 9, Mtu: mctp.HeaderLen}); !errors.Is(err, mctp.ErrBadArgument) {
		t.Fatalf("too small MTU resulted in %v", err)
	}
}

func TestCancelFlow(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie := mctp.AppCookie(1)
	reqFrag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 8, Cookie: &cookie})
	req := deliver(t, b, packets(t, reqFrag, [][]byte{[]byte("req")}, 8))

	respTag := req.Tag.Response()
	respFrag, _ := b.StartSend(SendParams{Dest: 8, Type: req.Type, Tag: &respTag, Mtu: 8})
	respPkts := packets(t, respFrag, [][]byte{pattern(12)}, 8)

	// The first packet starts a reassembly, which gets discarded by the cancellation.
	if _, err := a.Receive(respPkts[0]); err != nil {
		t.Fatal(err)
	}
	a.CancelFlow(9, reqFrag.Tag().Value)

	for _, pkt := range respPkts {
		if msg, err := a.Receive(pkt); err != nil || msg != nil {
			t.Fatalf("late response resulted in %v, %v", msg, err)
		}
	}
}

func TestCancelCookie(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie, other := mctp.AppCookie(1), mctp.AppCookie(2)

	// Two requests with the same cookie and one with another cookie.
	var responses [][]byte
	for _, params := range []SendParams{
		{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64, Cookie: &cookie},
		{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64, Cookie: &cookie},
		{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64, Cookie: &other},
	} {
		reqFrag, err := a.StartSend(params)
		if err != nil {
			t.Fatal(err)
		}
		req := deliver(t, b, packets(t, reqFrag, [][]byte{[]byte("req")}, 64))

		respTag := req.Tag.Response()
		respFrag, err := b.StartSend(SendParams{Dest: req.Source, Type: req.Type, Tag: &respTag, Mtu: 64})
		if err != nil {
			t.Fatal(err)
		}
		responses = append(responses, packets(t, respFrag, [][]byte{[]byte("resp")}, 64)...)
	}

	a.CancelCookie(cookie)

	for i, pkt := range responses[:2] {
		if msg, err := a.Receive(pkt); err != nil || msg != nil {
			t.Fatalf("response %d of a cancelled cookie resulted in %v, %v", i, msg, err)
		}
	}

	msg, err := a.Receive(responses[2])
	if err != nil {
		t.Fatal(err)
	} else if msg == nil {
		t.Fatal("response of another cookie was dropped")
	} else if c, ok := msg.Cookie(); !ok || c != other {
		t.Fatalf("expected cookie %v, got %v", other, c)
	}
}

func TestCancelCookieDiscardsRetained(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie := mctp.AppCookie(3)
	reqFrag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypeSPDM, Mtu: 64, Cookie: &cookie})
	req := deliver(t, b, packets(t, reqFrag, [][]byte{[]byte("req")}, 64))

	respTag := req.Tag.Response()
	respFrag, _ := b.StartSend(SendParams{Dest: 8, Type: req.Type, Tag: &respTag, Mtu: 64})
	deliver(t, a, packets(t, respFrag, [][]byte{[]byte("resp")}, 64)).Retain()

	a.CancelCookie(cookie)
	if msg := a.GetDeferredByCookie(cookie); msg != nil {
		t.Fatalf("retained message survived: %v", msg)
	}
}

func TestResponseToPreviousEid(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie := mctp.AppCookie(1)
	reqFrag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64, Cookie: &cookie})
	req := deliver(t, b, packets(t, reqFrag, [][]byte{[]byte("req")}, 64))

	respTag := req.Tag.Response()
	respFrag, _ := b.StartSend(SendParams{Dest: 8, Type: req.Type, Tag: &respTag, Mtu: 64})
	respPkts := packets(t, respFrag, [][]byte{[]byte("resp")}, 64)

	if err := a.SetEid(10); err != nil {
		t.Fatal(err)
	}

	msg := deliver(t, a, respPkts)
	if _, ok := msg.Cookie(); ok {
		t.Fatalf("response to the previous EID got a cookie: %v", msg)
	}
	if a.lookupFlow(9, reqFrag.Tag().Value) == nil {
		t.Fatal("response to the previous EID retired the flow")
	}
}

func TestDeferredQueue(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	send := func(payload string) *Message {
		frag, err := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64})
		if err != nil {
			t.Fatal(err)
		}
		return deliver(t, b, packets(t, frag, [][]byte{[]byte(payload)}, 64))
	}

	for _, payload := range []string{"first", "second"} {
		msg := send(payload)
		msg.SetCookie(7)
		msg.Retain()
	}

	// Not retained, will be gone.
	send("dropped").SetCookie(7)

	if msg := b.GetDeferredByCookie(1, 2); msg != nil {
		t.Fatalf("unexpected message %v", msg)
	}

	for _, expected := range []string{"first", "second"} {
		msg := b.GetDeferredByCookie(5, 7)
		if msg == nil {
			t.Fatalf("no deferred message, expected %s", expected)
		} else if string(msg.Payload) != expected {
			t.Fatalf("expected %s, got %s", expected, msg.Payload)
		}
	}

	if msg := b.GetDeferredByCookie(7); msg != nil {
		t.Fatalf("unexpected message %v", msg)
	}

	msg := send("kept")
	msg.SetCookie(7)
	msg.Retain()
	b.DiscardDeferred(7)
	if msg := b.GetDeferredByCookie(7); msg != nil {
		t.Fatalf("discarded message is still present: %v", msg)
	}
}

func TestUpdateTimeouts(t *testing.T) {
	a := NewStack(8, 0)
	b := NewStack(9, 0)

	cookie := mctp.AppCookie(2)
	frag, _ := a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 8, TagExpires: true, Cookie: &cookie})
	pkts := packets(t, frag, [][]byte{pattern(10)}, 8)

	// Unfinished reassembly
	if _, err := b.Receive(pkts[0]); err != nil {
		t.Fatal(err)
	}

	if next, err := b.Update(ReassemblyTimeout - 20); err != nil {
		t.Fatal(err)
	} else if next != 20 {
		t.Fatalf("expected next update in 20ms, got %d", next)
	}

	if next, err := b.Update(ReassemblyTimeout); err != nil {
		t.Fatal(err)
	} else if next != MaxUpdateInterval {
		t.Fatalf("expected next update in %dms, got %d", MaxUpdateInterval, next)
	}

	for _, pkt := range pkts[1:] {
		if msg, err := b.Receive(pkt); err != nil || msg != nil {
			t.Fatalf("packet of expired reassembly resulted in %v, %v", msg, err)
		}
	}

	// Expired flow
	if _, err := a.Update(FlowTimeout); err != nil {
		t.Fatal(err)
	}
	if f := a.lookupFlow(9, frag.Tag().Value); f != nil {
		t.Fatal("expiring flow was not removed")
	}

	// Retained message
	frag, _ = a.StartSend(SendParams{Dest: 9, Type: mctp.MsgTypePLDM, Mtu: 64})
	msg := deliver(t, b, packets(t, frag, [][]byte{[]byte("x")}, 64))
	msg.SetCookie(1)
	msg.Retain()

	if _, err := b.Update(ReassemblyTimeout + DeferredTimeout); err != nil {
		t.Fatal(err)
	}
	if msg := b.GetDeferredByCookie(1); msg != nil {
		t.Fatalf("retained message did not expire: %v", msg)
	}

	if _, err := b.Update(0); !errors.Is(err, mctp.ErrInvalidInput) {
		t.Fatalf("time going backwards resulted in %v", err)
	}
}

func TestSetEid(t *testing.T) {
	s := NewStack(mctp.EidNull, 0)

	tests := []struct {
		eid mctp.Eid
		ok  bool
	}{
		{42, true},
		{mctp.EidNull, true},
		{3, false},
		{mctp.EidBroadcast, false},
	}

	for _, test := range tests {
		err := s.SetEid(test.eid)
		if test.ok && err != nil {
			t.Fatalf("setting %v errored: %v", test.eid, err)
		} else if !test.ok && !errors.Is(err, mctp.ErrBadArgument) {
			t.Fatalf("setting %v resulted in %v", test.eid, err)
		} else if test.ok && s.Eid() != test.eid {
			t.Fatalf("expected %v, got %v", test.eid, s.Eid())
		}
	}
}
