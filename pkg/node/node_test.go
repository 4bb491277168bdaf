// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package node

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/dtn7/mctp-go/pkg/binding"
	"github.com/dtn7/mctp-go/pkg/control"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// nodePair creates two Nodes connected by an in-memory pipe.
func nodePair(t *testing.T, confA, confB Config) (a, b *Node) {
	pipeA, pipeB := binding.NewPipe(64)

	var err error
	if a, err = NewNode(pipeA, confA); err != nil {
		t.Fatal(err)
	}
	if b, err = NewNode(pipeB, confB); err != nil {
		t.Fatal(err)
	}
	return
}

// awaitMessage waits for the next Message or fails after a timeout.
func awaitMessage(t *testing.T, msgs <-chan Message) Message {
	select {
	case msg := <-msgs:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message was received")
		return Message{}
	}
}

func TestNodeRoundtrip(t *testing.T) {
	a, b := nodePair(t, Config{Eid: 8}, Config{Eid: 9})
	defer a.Close()
	defer b.Close()

	_, err := a.Listen(mctp.MsgTypeVendorPCI, func(msg Message) {
		tag := msg.Tag.Response()
		if _, err := a.Send(&msg.Source, msg.Type, &tag, msg.IC, msg.Cookie, bytes.ToUpper(msg.Payload)); err != nil {
			t.Error(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	responses := make(chan Message, 1)
	req, err := b.Request(8, func(msg Message) { responses <- msg })
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("hello mctp "), 50)
	if tag, err := b.Send(nil, mctp.MsgTypeVendorPCI, nil, false, req, payload); err != nil {
		t.Fatal(err)
	} else if !tag.IsOwner() {
		t.Fatalf("request was sent with %v", tag)
	}

	resp := awaitMessage(t, responses)
	if !bytes.Equal(resp.Payload, bytes.ToUpper(payload)) {
		t.Fatalf("unexpected response payload %q", resp.Payload)
	} else if resp.Source != 8 || resp.Cookie != req || resp.Tag.IsOwner() {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestNodeControl(t *testing.T) {
	a, b := nodePair(t,
		Config{Eid: mctp.EidNull, Control: true, ControlTypes: []mctp.MsgType{mctp.MsgTypePLDM}},
		Config{Eid: 8})
	defer a.Close()
	defer b.Close()

	responses := make(chan Message, 1)
	req, err := b.Request(mctp.EidNull, func(msg Message) { responses <- msg })
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Send(nil, mctp.MsgTypeControl, nil, false, req, control.SetEndpointIDRequest(1, control.SetEidSet, 0x42)); err != nil {
		t.Fatal(err)
	}
	if accepted, eid, err := control.ParseSetEndpointIDResponse(awaitMessage(t, responses).Payload); err != nil {
		t.Fatal(err)
	} else if !accepted || eid != 0x42 {
		t.Fatalf("EID assignment failed: %t, %v", accepted, eid)
	}

	if eid, err := a.Eid(); err != nil {
		t.Fatal(err)
	} else if eid != 0x42 {
		t.Fatalf("expected EID 0x42, got %v", eid)
	}

	// Continue with the newly assigned EID.
	if err := b.Unbind(req); err != nil {
		t.Fatal(err)
	}
	if req, err = b.Request(0x42, func(msg Message) { responses <- msg }); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Send(nil, mctp.MsgTypeControl, nil, false, req, control.GetMessageTypeSupportRequest(2)); err != nil {
		t.Fatal(err)
	}
	types, err := control.ParseGetMessageTypeSupportResponse(awaitMessage(t, responses).Payload)
	if err != nil {
		t.Fatal(err)
	} else if len(types) != 2 || types[0] != mctp.MsgTypeControl || types[1] != mctp.MsgTypePLDM {
		t.Fatalf("unexpected message types %v", types)
	}
}

func TestNodeUnbind(t *testing.T) {
	a, b := nodePair(t, Config{Eid: 8}, Config{Eid: 9})
	defer a.Close()
	defer b.Close()

	requests := make(chan Message, 4)
	listener, err := a.Listen(mctp.MsgTypeSPDM, func(msg Message) { requests <- msg })
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Listen(mctp.MsgTypeSPDM, func(Message) {}); !errors.Is(err, mctp.ErrAddrInUse) {
		t.Fatalf("second listener resulted in %v", err)
	}

	req, err := b.Request(8, func(Message) {})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Send(nil, mctp.MsgTypeSPDM, nil, false, req, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	if msg := awaitMessage(t, requests); msg.Cookie != listener || !msg.Tag.IsOwner() {
		t.Fatalf("unexpected request %v", msg)
	}

	if err := a.Unbind(listener); err != nil {
		t.Fatal(err)
	}
	if err := a.Unbind(listener); !errors.Is(err, mctp.ErrBadArgument) {
		t.Fatalf("second unbind resulted in %v", err)
	}
}

func TestNodeSetEid(t *testing.T) {
	pipeA, pipeB := binding.NewPipe(64)
	defer pipeB.Close()

	n, err := NewNode(pipeA, Config{Eid: 8})
	if err != nil {
		t.Fatal(err)
	}

	if err := n.SetEid(0x23); err != nil {
		t.Fatal(err)
	}
	if eid, err := n.Eid(); err != nil || eid != 0x23 {
		t.Fatalf("expected EID 0x23, got %v, %v", eid, err)
	}
	if err := n.SetEid(mctp.EidBroadcast); !errors.Is(err, mctp.ErrBadArgument) {
		t.Fatalf("broadcast EID resulted in %v", err)
	}

	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if err := n.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second close resulted in %v", err)
	}
	if _, err := n.Eid(); !errors.Is(err, ErrClosed) {
		t.Fatalf("operation on closed node resulted in %v", err)
	}
}
