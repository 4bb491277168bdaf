// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package control

import (
	"errors"
	"fmt"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Command is the control protocol's command code.
type Command uint8

const (
	CmdSetEndpointID         Command = 0x01
	CmdGetEndpointID         Command = 0x02
	CmdGetEndpointUUID       Command = 0x03
	CmdGetVersionSupport     Command = 0x04
	CmdGetMessageTypeSupport Command = 0x05
)

func (c Command) String() string {
	switch c {
	case CmdSetEndpointID:
		return "set-endpoint-id"
	case CmdGetEndpointID:
		return "get-endpoint-id"
	case CmdGetEndpointUUID:
		return "get-endpoint-uuid"
	case CmdGetVersionSupport:
		return "get-version-support"
	case CmdGetMessageTypeSupport:
		return "get-message-type-support"
	default:
		return fmt.Sprintf("command:%#02x", uint8(c))
	}
}

// CompletionCode is the first byte of each response's data.
type CompletionCode uint8

const (
	CompletionSuccess          CompletionCode = 0x00
	CompletionError            CompletionCode = 0x01
	CompletionInvalidData      CompletionCode = 0x02
	CompletionInvalidLength    CompletionCode = 0x03
	CompletionNotReady         CompletionCode = 0x04
	CompletionUnsupportedCmd   CompletionCode = 0x05
	CompletionTypeNotSupported CompletionCode = 0x80
)

func (cc CompletionCode) String() string {
	switch cc {
	case CompletionSuccess:
		return "success"
	case CompletionError:
		return "error"
	case CompletionInvalidData:
		return "invalid data"
	case CompletionInvalidLength:
		return "invalid length"
	case CompletionNotReady:
		return "not ready"
	case CompletionUnsupportedCmd:
		return "unsupported command"
	case CompletionTypeNotSupported:
		return "message type not supported"
	default:
		return fmt.Sprintf("completion:%#02x", uint8(cc))
	}
}

// ErrCompletion is wrapped by a CompletionCodeError.
var ErrCompletion = errors.New("unsuccessful completion")

// CompletionCodeError is returned by the response decoders for an unsuccessful response.
type CompletionCodeError struct {
	Command Command
	Code    CompletionCode
}

func (e *CompletionCodeError) Error() string {
	return fmt.Sprintf("%v completed with %v", e.Command, e.Code)
}

func (e *CompletionCodeError) Unwrap() error {
	return ErrCompletion
}

const (
	flagRequest  byte = 0x80
	flagDatagram byte = 0x40
	instanceMask byte = 0x1F

	// headerLen is the length of an encoded Header, excluding the MCTP message header byte.
	headerLen int = 2
)

// Header precedes each control message.
//
//	  0   1   2   3   4   5   6   7
//	+---+---+---+---+---+---+---+---+
//	| Rq| D |rsv|    Instance ID    |
//	+---+---+---+---+---+---+---+---+
//	|          Command Code         |
//	+---+---+---+---+---+---+---+---+
//
// A response copies its request's Instance ID and Command, and clears the Rq and D bits. Datagrams are requests
// without a response.
type Header struct {
	Request  bool
	Datagram bool
	Instance uint8
	Command  Command
}

// Append the encoded Header to b.
func (h Header) Append(b []byte) []byte {
	first := h.Instance & instanceMask
	if h.Request {
		first |= flagRequest
	}
	if h.Datagram {
		first |= flagDatagram
	}
	return append(b, first, byte(h.Command))
}

// Response derives a response's Header from this request's Header.
func (h Header) Response() Header {
	return Header{Instance: h.Instance, Command: h.Command}
}

func (h Header) String() string {
	return fmt.Sprintf("Header(%v, Request: %t, Datagram: %t, Instance: %d)",
		h.Command, h.Request, h.Datagram, h.Instance)
}

// ParseHeader splits a control message's payload into its Header and the command specific data.
func ParseHeader(payload []byte) (h Header, data []byte, err error) {
	if len(payload) < headerLen {
		err = fmt.Errorf("control message of %d bytes is too short: %w", len(payload), mctp.ErrInvalidInput)
		return
	}

	h = Header{
		Request:  payload[0]&flagRequest != 0,
		Datagram: payload[0]&flagDatagram != 0,
		Instance: payload[0] & instanceMask,
		Command:  Command(payload[1]),
	}
	data = payload[headerLen:]
	return
}

// Version is a DSP0236 version number entry. Each field is encoded, e.g., 0xF1 is version 1.
type Version struct {
	Major, Minor, Update, Alpha uint8
}

// VersionBase is the implemented base specification, DSP0236 1.3.1.
var VersionBase = Version{Major: 0xF1, Minor: 0xF3, Update: 0xF1, Alpha: 0x00}

func (v Version) String() string {
	field := func(b uint8) string {
		if b&0xF0 == 0xF0 {
			return fmt.Sprintf("%d", b&0x0F)
		}
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%s.%s.%s", field(v.Major), field(v.Minor), field(v.Update))
}

// SetEidOperation selects the action of a Set Endpoint ID request.
type SetEidOperation uint8

const (
	SetEidSet        SetEidOperation = 0x00
	SetEidForce      SetEidOperation = 0x01
	SetEidReset      SetEidOperation = 0x02
	SetEidDiscovered SetEidOperation = 0x03

	setEidOperationMask byte = 0x03
)

// set-endpoint-id response status bits.
const (
	setEidAccepted byte = 0x00
	setEidRejected byte = 0x10
)
