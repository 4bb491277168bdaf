// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dtn7/cboring"
)

// webAgentMessage describes a message which might be sent over a WebSocketAgent.
// Implementations are available in ws_agent_msg_impl.go.
type webAgentMessage interface {
	// typeCode is an unique identifier for each message type.
	typeCode() uint64

	// CborMarshaler must only be implemented for the type's logic.
	// A generic wrapper for the typeCode is available in the marshalCbor and unmarshalCbor functions.
	cboring.CborMarshaler
}

const (
	wamStatusCode  uint64 = 0
	wamBindCode    uint64 = 1
	wamHandleCode  uint64 = 2
	wamSendCode    uint64 = 3
	wamSentCode    uint64 = 4
	wamMessageCode uint64 = 5
	wamUnbindCode  uint64 = 6
)

var wamMapping = map[uint64]reflect.Type{
	wamStatusCode:  reflect.TypeOf(wamStatus{}),
	wamBindCode:    reflect.TypeOf(wamBind{}),
	wamHandleCode:  reflect.TypeOf(wamHandle{}),
	wamSendCode:    reflect.TypeOf(wamSend{}),
	wamSentCode:    reflect.TypeOf(wamSent{}),
	wamMessageCode: reflect.TypeOf(wamMessage{}),
	wamUnbindCode:  reflect.TypeOf(wamUnbind{}),
}

// marshalCbor writes a webAgentMessage wrapped with its type code as CBOR.
func marshalCbor(wam webAgentMessage, w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(wam.typeCode(), w); err != nil {
		return err
	}

	return cboring.Marshal(wam, w)
}

// unmarshalCbor reads a new webAgentMessage based on its type code from CBOR.
func unmarshalCbor(r io.Reader) (wam webAgentMessage, err error) {
	if n, arrErr := cboring.ReadArrayLength(r); arrErr != nil {
		err = arrErr
		return
	} else if n != 2 {
		err = fmt.Errorf("expected array of two elements, got %d", n)
		return
	}

	if n, typeErr := cboring.ReadUInt(r); typeErr != nil {
		err = typeErr
		return
	} else if t, ok := wamMapping[n]; !ok {
		err = fmt.Errorf("no known WAM type code %d", n)
		return
	} else {
		wam = reflect.New(t).Interface().(webAgentMessage)
	}

	err = cboring.Unmarshal(wam, r)
	return
}
