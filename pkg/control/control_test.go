// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package control

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

type sentMessage struct {
	eid    mctp.Eid
	typ    mctp.MsgType
	tag    mctp.Tag
	ic     mctp.MsgIC
	cookie mctp.AppCookie
	buf    []byte
}

// fakeRouter records all sent messages.
type fakeRouter struct {
	eid  mctp.Eid
	sent []sentMessage
}

func (r *fakeRouter) Eid() mctp.Eid {
	return r.eid
}

func (r *fakeRouter) SetEid(eid mctp.Eid) error {
	if eid != mctp.EidNull && !eid.IsNormal() {
		return mctp.ErrBadArgument
	}
	r.eid = eid
	return nil
}

func (r *fakeRouter) Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
	buf []byte) (mctp.Tag, error) {
	r.sent = append(r.sent, sentMessage{*eid, typ, *tag, ic, cookie, append([]byte(nil), buf...)})
	return *tag, nil
}

// message creates a received single packet Message from source 8.
func message(t *testing.T, typ mctp.MsgType, payload []byte) *estack.Message {
	tx := estack.NewStack(8, 0)
	rx := estack.NewStack(20, 0)

	tag := mctp.OwnedTag(3)
	frag, err := tx.StartSend(estack.SendParams{Dest: 20, Type: typ, Tag: &tag, Mtu: 255})
	if err != nil {
		t.Fatal(err)
	}

	pkt, fin, err := frag.Fragment(payload, make([]byte, 255))
	if err != nil {
		t.Fatal(err)
	} else if !fin {
		t.Fatal("payload exceeds one packet")
	}

	msg, err := rx.Receive(pkt)
	if err != nil {
		t.Fatal(err)
	} else if msg == nil {
		t.Fatal("no message was received")
	}
	return msg
}

// exchange lets a new Responder handle a request and returns the response's payload.
func exchange(t *testing.T, rt *fakeRouter, resp *Responder, req []byte) []byte {
	if err := resp.Handle(rt, message(t, mctp.MsgTypeControl, req)); err != nil {
		t.Fatal(err)
	}

	if len(rt.sent) != 1 {
		t.Fatalf("expected one response, got %d", len(rt.sent))
	}
	sent := rt.sent[0]
	rt.sent = nil

	if sent.eid != 8 || sent.typ != mctp.MsgTypeControl || sent.tag != mctp.UnownedTag(3) || sent.cookie != 1 {
		t.Fatalf("unexpected response %v", sent)
	}
	return sent.buf
}

func TestHeader(t *testing.T) {
	h := Header{Request: true, Datagram: true, Instance: 0x15, Command: CmdGetEndpointID}

	b := h.Append(nil)
	if !reflect.DeepEqual(b, []byte{0xD5, 0x02}) {
		t.Fatalf("unexpected encoding %x", b)
	}

	h2, data, err := ParseHeader(append(b, 0x23))
	if err != nil {
		t.Fatal(err)
	} else if h2 != h {
		t.Fatalf("expected %v, got %v", h, h2)
	} else if !reflect.DeepEqual(data, []byte{0x23}) {
		t.Fatalf("unexpected data %x", data)
	}

	if r := h.Response(); r.Request || r.Datagram || r.Instance != h.Instance || r.Command != h.Command {
		t.Fatalf("unexpected response header %v", r)
	}

	if _, _, err := ParseHeader([]byte{0x80}); !errors.Is(err, mctp.ErrInvalidInput) {
		t.Fatalf("short header resulted in %v", err)
	}
}

func TestGetEndpointID(t *testing.T) {
	rt := &fakeRouter{eid: 20}
	resp := NewResponder(1, nil)

	buf := exchange(t, rt, resp, GetEndpointIDRequest(7))

	if h, _, _ := ParseHeader(buf); h.Instance != 7 || h.Request {
		t.Fatalf("unexpected response header %v", h)
	}

	if eid, err := ParseGetEndpointIDResponse(buf); err != nil {
		t.Fatal(err)
	} else if eid != 20 {
		t.Fatalf("expected EID 20, got %v", eid)
	}

	buf = exchange(t, rt, resp, append(GetEndpointIDRequest(7), 0x00))
	if _, err := ParseGetEndpointIDResponse(buf); !errors.Is(err, ErrCompletion) {
		t.Fatalf("request with trailing data resulted in %v", err)
	}
}

func TestSetEndpointID(t *testing.T) {
	rt := &fakeRouter{eid: mctp.EidNull}
	resp := NewResponder(1, nil)

	accepted, eid, err := ParseSetEndpointIDResponse(exchange(t, rt, resp, SetEndpointIDRequest(1, SetEidSet, 0x30)))
	if err != nil {
		t.Fatal(err)
	} else if !accepted || eid != 0x30 || rt.eid != 0x30 {
		t.Fatalf("EID was not assigned: %t, %v, %v", accepted, eid, rt.eid)
	}

	tests := []struct {
		name string
		req  []byte
		code CompletionCode
	}{
		{"broadcast", SetEndpointIDRequest(1, SetEidForce, mctp.EidBroadcast), CompletionInvalidData},
		{"reserved", SetEndpointIDRequest(1, SetEidSet, 0x03), CompletionInvalidData},
		{"reset", SetEndpointIDRequest(1, SetEidReset, 0x40), CompletionInvalidData},
		{"length", request(1, CmdSetEndpointID, 0x00), CompletionInvalidLength},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := ParseSetEndpointIDResponse(exchange(t, rt, resp, test.req))

			var ccErr *CompletionCodeError
			if !errors.As(err, &ccErr) {
				t.Fatalf("expected a completion code error, got %v", err)
			} else if ccErr.Code != test.code || ccErr.Command != CmdSetEndpointID {
				t.Fatalf("expected %v, got %v", test.code, ccErr)
			}

			if rt.eid != 0x30 {
				t.Fatalf("EID was changed to %v", rt.eid)
			}
		})
	}

	if resp.Discovered() {
		t.Fatal("endpoint is discovered too early")
	}
	if _, _, err := ParseSetEndpointIDResponse(exchange(t, rt, resp, SetEndpointIDRequest(1, SetEidDiscovered, 0))); err != nil {
		t.Fatal(err)
	} else if !resp.Discovered() {
		t.Fatal("endpoint was not marked as discovered")
	}
}

func TestGetVersionSupport(t *testing.T) {
	rt := &fakeRouter{eid: 20}
	resp := NewResponder(1, nil)

	for _, typ := range []uint8{0xFF, 0x00} {
		versions, err := ParseGetVersionSupportResponse(exchange(t, rt, resp, GetVersionSupportRequest(2, typ)))
		if err != nil {
			t.Fatal(err)
		} else if len(versions) != 1 || versions[0] != VersionBase {
			t.Fatalf("unexpected versions %v", versions)
		} else if s := versions[0].String(); s != "1.3.1" {
			t.Fatalf("expected version 1.3.1, got %s", s)
		}
	}

	_, err := ParseGetVersionSupportResponse(exchange(t, rt, resp, GetVersionSupportRequest(2, 0x05)))
	var ccErr *CompletionCodeError
	if !errors.As(err, &ccErr) || ccErr.Code != CompletionTypeNotSupported {
		t.Fatalf("unsupported type resulted in %v", err)
	}
}

func TestGetMessageTypeSupport(t *testing.T) {
	rt := &fakeRouter{eid: 20}
	resp := NewResponder(1, []mctp.MsgType{mctp.MsgTypePLDM, mctp.MsgTypeControl, mctp.MsgTypeSPDM})

	types, err := ParseGetMessageTypeSupportResponse(exchange(t, rt, resp, GetMessageTypeSupportRequest(0)))
	if err != nil {
		t.Fatal(err)
	}

	expected := []mctp.MsgType{mctp.MsgTypeControl, mctp.MsgTypePLDM, mctp.MsgTypeSPDM}
	if !reflect.DeepEqual(types, expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	rt := &fakeRouter{eid: 20}
	resp := NewResponder(1, nil)

	buf := exchange(t, rt, resp, request(4, CmdGetEndpointUUID))
	if _, err := parseResponse(buf, CmdGetEndpointUUID, 0); !errors.Is(err, ErrCompletion) {
		t.Fatalf("unsupported command resulted in %v", err)
	} else if cc := CompletionCode(buf[headerLen]); cc != CompletionUnsupportedCmd {
		t.Fatalf("expected %v, got %v", CompletionUnsupportedCmd, cc)
	}
}

func TestIgnoredMessages(t *testing.T) {
	rt := &fakeRouter{eid: 20}
	resp := NewResponder(1, nil)

	datagram := Header{Request: true, Datagram: true, Command: CmdGetEndpointID}.Append(nil)
	response := Header{Command: CmdGetEndpointID}.Append(nil)

	msgs := []*estack.Message{
		message(t, mctp.MsgTypeControl, datagram),
		message(t, mctp.MsgTypeControl, response),
		message(t, mctp.MsgTypeControl, []byte{0x80}),
		message(t, mctp.MsgTypePLDM, GetEndpointIDRequest(0)),
	}

	for _, msg := range msgs {
		if err := resp.Handle(rt, msg); err != nil {
			t.Fatal(err)
		}
	}

	if len(rt.sent) != 0 {
		t.Fatalf("expected no responses, got %v", rt.sent)
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"request", GetEndpointIDRequest(0)},
		{"command", append(Header{Command: CmdGetVersionSupport}.Append(nil), 0x00, 0x08, 0x00, 0x00)},
		{"no completion code", Header{Command: CmdGetEndpointID}.Append(nil)},
		{"too short", append(Header{Command: CmdGetEndpointID}.Append(nil), 0x00, 0x08)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ParseGetEndpointIDResponse(test.payload); !errors.Is(err, mctp.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}
