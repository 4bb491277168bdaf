// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"

	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/node"
)

// readArrayLength reads a CBOR array header and expects exactly n elements.
func readArrayLength(n uint64, r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != n {
		return fmt.Errorf("expected CBOR array of %d elements, not %d", n, l)
	}
	return nil
}

// tagOwnerBit marks an owned Tag within its CBOR representation.
const tagOwnerBit uint64 = 0x08

func encodeTag(tag mctp.Tag) uint64 {
	v := uint64(tag.Value)
	if tag.Owner {
		v |= tagOwnerBit
	}
	return v
}

func decodeTag(v uint64) (mctp.Tag, error) {
	if v&^(tagOwnerBit|uint64(mctp.TagValueMax)) != 0 {
		return mctp.Tag{}, fmt.Errorf("invalid tag %#x", v)
	}
	return mctp.Tag{Owner: v&tagOwnerBit != 0, Value: mctp.TagValue(v) & mctp.TagValueMax}, nil
}

// readByteValue reads an unsigned integer which must fit into a byte.
func readByteValue(r io.Reader) (uint8, error) {
	if n, err := cboring.ReadUInt(r); err != nil {
		return 0, err
	} else if n > 0xFF {
		return 0, fmt.Errorf("value %d exceeds a byte", n)
	} else {
		return uint8(n), nil
	}
}

// wamStatus is a webAgentMessage to acknowledge a previous message or report an error with a non-empty string.
type wamStatus struct {
	errorMsg string
}

// newStatusMessage creates a new wamStatus webAgentMessage.
func newStatusMessage(err error) *wamStatus {
	if err == nil {
		return &wamStatus{""}
	} else {
		return &wamStatus{err.Error()}
	}
}

func (_ *wamStatus) typeCode() uint64 {
	return wamStatusCode
}

func (ws *wamStatus) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(ws.errorMsg, w)
}

func (ws *wamStatus) UnmarshalCbor(r io.Reader) (err error) {
	ws.errorMsg, err = cboring.ReadTextString(r)
	return
}

// bindKind distinguishes listener and request bindings.
type bindKind uint64

const (
	bindListener bindKind = 0
	bindRequest  bindKind = 1
)

// wamBind is sent from a client to bind a listener for a message type or a request for an EID. The server answers
// with a wamHandle or a wamStatus on errors.
type wamBind struct {
	kind  bindKind
	value uint8
}

// newBindMessage creates a new wamBind webAgentMessage.
func newBindMessage(kind bindKind, value uint8) *wamBind {
	return &wamBind{kind, value}
}

func (_ *wamBind) typeCode() uint64 {
	return wamBindCode
}

func (wb *wamBind) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(wb.kind), w); err != nil {
		return err
	}
	return cboring.WriteUInt(uint64(wb.value), w)
}

func (wb *wamBind) UnmarshalCbor(r io.Reader) error {
	if err := readArrayLength(2, r); err != nil {
		return err
	}

	if kind, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if k := bindKind(kind); k != bindListener && k != bindRequest {
		return fmt.Errorf("unknown bind kind %d", kind)
	} else {
		wb.kind = k
	}

	var err error
	wb.value, err = readByteValue(r)
	return err
}

// wamHandle is the server's answer to a successful wamBind.
type wamHandle struct {
	cookie mctp.AppCookie
}

func (_ *wamHandle) typeCode() uint64 {
	return wamHandleCode
}

func (wh *wamHandle) MarshalCbor(w io.Writer) error {
	return cboring.WriteUInt(uint64(wh.cookie), w)
}

func (wh *wamHandle) UnmarshalCbor(r io.Reader) error {
	cookie, err := cboring.ReadUInt(r)
	wh.cookie = mctp.AppCookie(cookie)
	return err
}

// wamSend is sent from a client to send a message with one of its handles. The server answers with a wamSent.
type wamSend struct {
	cookie  mctp.AppCookie
	eid     *mctp.Eid
	typ     mctp.MsgType
	tag     *mctp.Tag
	ic      mctp.MsgIC
	payload []byte
}

func (_ *wamSend) typeCode() uint64 {
	return wamSendCode
}

func (ws *wamSend) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(8, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(ws.cookie), w); err != nil {
		return err
	}

	var eid uint64
	if ws.eid != nil {
		eid = uint64(*ws.eid)
	}
	if err := cboring.WriteBoolean(ws.eid != nil, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(eid, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(ws.typ), w); err != nil {
		return err
	}

	var tag uint64
	if ws.tag != nil {
		tag = encodeTag(*ws.tag)
	}
	if err := cboring.WriteBoolean(ws.tag != nil, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(tag, w); err != nil {
		return err
	}

	if err := cboring.WriteBoolean(bool(ws.ic), w); err != nil {
		return err
	}

	return cboring.WriteByteString(ws.payload, w)
}

func (ws *wamSend) UnmarshalCbor(r io.Reader) error {
	if err := readArrayLength(8, r); err != nil {
		return err
	}

	if cookie, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		ws.cookie = mctp.AppCookie(cookie)
	}

	if hasEid, err := cboring.ReadBoolean(r); err != nil {
		return err
	} else if eid, err := readByteValue(r); err != nil {
		return err
	} else if hasEid {
		e := mctp.Eid(eid)
		ws.eid = &e
	}

	if typ, err := readByteValue(r); err != nil {
		return err
	} else {
		ws.typ = mctp.MsgType(typ)
	}

	if hasTag, err := cboring.ReadBoolean(r); err != nil {
		return err
	} else if tagValue, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if tag, err := decodeTag(tagValue); err != nil {
		return err
	} else if hasTag {
		ws.tag = &tag
	}

	if ic, err := cboring.ReadBoolean(r); err != nil {
		return err
	} else {
		ws.ic = mctp.MsgIC(ic)
	}

	payload, err := cboring.ReadByteString(r)
	ws.payload = payload
	return err
}

// wamSent is the server's answer to a wamSend, containing either an error or the used tag.
type wamSent struct {
	errorMsg string
	tag      mctp.Tag
}

func newSentMessage(tag mctp.Tag, err error) *wamSent {
	if err != nil {
		return &wamSent{errorMsg: err.Error()}
	}
	return &wamSent{tag: tag}
}

func (_ *wamSent) typeCode() uint64 {
	return wamSentCode
}

func (ws *wamSent) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(ws.errorMsg, w); err != nil {
		return err
	}
	return cboring.WriteUInt(encodeTag(ws.tag), w)
}

func (ws *wamSent) UnmarshalCbor(r io.Reader) (err error) {
	if err = readArrayLength(2, r); err != nil {
		return
	}
	if ws.errorMsg, err = cboring.ReadTextString(r); err != nil {
		return
	}

	tag, err := cboring.ReadUInt(r)
	if err != nil {
		return
	}
	ws.tag, err = decodeTag(tag)
	return
}

// wamMessage is pushed from the server to a client for each received message of its handles.
type wamMessage struct {
	msg node.Message
}

func newMessageMessage(msg node.Message) *wamMessage {
	return &wamMessage{msg}
}

func (_ *wamMessage) typeCode() uint64 {
	return wamMessageCode
}

func (wm *wamMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(7, w); err != nil {
		return err
	}

	fields := []uint64{
		uint64(wm.msg.Cookie),
		uint64(wm.msg.Source),
		uint64(wm.msg.Dest),
		uint64(wm.msg.Type),
		encodeTag(wm.msg.Tag),
	}
	for _, field := range fields {
		if err := cboring.WriteUInt(field, w); err != nil {
			return err
		}
	}

	if err := cboring.WriteBoolean(bool(wm.msg.IC), w); err != nil {
		return err
	}

	return cboring.WriteByteString(wm.msg.Payload, w)
}

func (wm *wamMessage) UnmarshalCbor(r io.Reader) error {
	if err := readArrayLength(7, r); err != nil {
		return err
	}

	if cookie, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		wm.msg.Cookie = mctp.AppCookie(cookie)
	}

	var addrs [3]uint8
	for i := range addrs {
		if b, err := readByteValue(r); err != nil {
			return err
		} else {
			addrs[i] = b
		}
	}
	wm.msg.Source, wm.msg.Dest, wm.msg.Type = mctp.Eid(addrs[0]), mctp.Eid(addrs[1]), mctp.MsgType(addrs[2])

	if tagValue, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if tag, err := decodeTag(tagValue); err != nil {
		return err
	} else {
		wm.msg.Tag = tag
	}

	if ic, err := cboring.ReadBoolean(r); err != nil {
		return err
	} else {
		wm.msg.IC = mctp.MsgIC(ic)
	}

	payload, err := cboring.ReadByteString(r)
	wm.msg.Payload = payload
	return err
}

// wamUnbind is sent from a client to release one of its handles. The server answers with a wamStatus.
type wamUnbind struct {
	cookie mctp.AppCookie
}

func (_ *wamUnbind) typeCode() uint64 {
	return wamUnbindCode
}

func (wu *wamUnbind) MarshalCbor(w io.Writer) error {
	return cboring.WriteUInt(uint64(wu.cookie), w)
}

func (wu *wamUnbind) UnmarshalCbor(r io.Reader) error {
	cookie, err := cboring.ReadUInt(r)
	wu.cookie = mctp.AppCookie(cookie)
	return err
}
