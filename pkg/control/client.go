// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package control

import (
	"fmt"

	"github.com/dtn7/mctp-go/pkg/mctp"
)

func request(instance uint8, cmd Command, data ...byte) []byte {
	h := Header{Request: true, Instance: instance, Command: cmd}
	return append(h.Append(make([]byte, 0, headerLen+len(data))), data...)
}

// parseResponse checks a response's Header and completion code and returns the remaining data.
func parseResponse(payload []byte, cmd Command, minLen int) ([]byte, error) {
	h, data, err := ParseHeader(payload)
	if err != nil {
		return nil, err
	}

	if h.Request {
		return nil, fmt.Errorf("%v is not a response: %w", h, mctp.ErrInvalidInput)
	} else if h.Command != cmd {
		return nil, fmt.Errorf("expected %v, got %v: %w", cmd, h.Command, mctp.ErrInvalidInput)
	}

	if len(data) < 1 {
		return nil, fmt.Errorf("%v lacks a completion code: %w", h, mctp.ErrInvalidInput)
	} else if cc := CompletionCode(data[0]); cc != CompletionSuccess {
		return nil, &CompletionCodeError{Command: cmd, Code: cc}
	}

	data = data[1:]
	if len(data) < minLen {
		return nil, fmt.Errorf("%v response has %d bytes, expected %d: %w", cmd, len(data), minLen, mctp.ErrInvalidInput)
	}
	return data, nil
}

// SetEndpointIDRequest encodes a Set Endpoint ID request.
func SetEndpointIDRequest(instance uint8, op SetEidOperation, eid mctp.Eid) []byte {
	return request(instance, CmdSetEndpointID, byte(op)&setEidOperationMask, byte(eid))
}

// ParseSetEndpointIDResponse decodes a Set Endpoint ID response. The EID is the endpoint's EID after the request.
func ParseSetEndpointIDResponse(payload []byte) (accepted bool, eid mctp.Eid, err error) {
	data, err := parseResponse(payload, CmdSetEndpointID, 3)
	if err != nil {
		return
	}

	accepted = data[0]&setEidRejected == 0
	eid = mctp.Eid(data[1])
	return
}

// GetEndpointIDRequest encodes a Get Endpoint ID request.
func GetEndpointIDRequest(instance uint8) []byte {
	return request(instance, CmdGetEndpointID)
}

// ParseGetEndpointIDResponse decodes a Get Endpoint ID response.
func ParseGetEndpointIDResponse(payload []byte) (eid mctp.Eid, err error) {
	data, err := parseResponse(payload, CmdGetEndpointID, 3)
	if err != nil {
		return
	}

	eid = mctp.Eid(data[0])
	return
}

// GetVersionSupportRequest encodes a Get MCTP Version Support request. The type 0xFF queries the base
// specification's versions.
func GetVersionSupportRequest(instance uint8, typ uint8) []byte {
	return request(instance, CmdGetVersionSupport, typ)
}

// ParseGetVersionSupportResponse decodes a Get MCTP Version Support response.
func ParseGetVersionSupportResponse(payload []byte) ([]Version, error) {
	data, err := parseResponse(payload, CmdGetVersionSupport, 1)
	if err != nil {
		return nil, err
	}

	n := int(data[0])
	if data = data[1:]; len(data) != 4*n {
		return nil, fmt.Errorf("%d version entries in %d bytes: %w", n, len(data), mctp.ErrInvalidInput)
	}

	versions := make([]Version, n)
	for i := range versions {
		e := data[4*i:]
		versions[i] = Version{Major: e[0], Minor: e[1], Update: e[2], Alpha: e[3]}
	}
	return versions, nil
}

// GetMessageTypeSupportRequest encodes a Get Message Type Support request.
func GetMessageTypeSupportRequest(instance uint8) []byte {
	return request(instance, CmdGetMessageTypeSupport)
}

// ParseGetMessageTypeSupportResponse decodes a Get Message Type Support response.
func ParseGetMessageTypeSupportResponse(payload []byte) ([]mctp.MsgType, error) {
	data, err := parseResponse(payload, CmdGetMessageTypeSupport, 1)
	if err != nil {
		return nil, err
	}

	n := int(data[0])
	if data = data[1:]; len(data) != n {
		return nil, fmt.Errorf("%d message types in %d bytes: %w", n, len(data), mctp.ErrInvalidInput)
	}

	types := make([]mctp.MsgType, n)
	for i, b := range data {
		types[i] = mctp.MsgType(b)
	}
	return types, nil
}
