// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package mctp

import "fmt"

// Eid is an MCTP Endpoint ID, the address of an endpoint within an MCTP network.
type Eid uint8

const (
	// EidNull is the null EID, used by endpoints which have not been assigned an EID yet.
	EidNull Eid = 0x00

	// EidBroadcast addresses all endpoints on a bus.
	EidBroadcast Eid = 0xFF

	// eidFirstNormal is the first EID which is neither null nor reserved.
	eidFirstNormal Eid = 0x08
)

// IsNormal checks if this EID might be assigned to an endpoint, i.e., it is neither null, reserved nor broadcast.
func (e Eid) IsNormal() bool {
	return e >= eidFirstNormal && e != EidBroadcast
}

func (e Eid) String() string {
	return fmt.Sprintf("eid:%d", uint8(e))
}

// MsgType is the seven bit MCTP message type, used to route incoming requests to listeners.
type MsgType uint8

const (
	MsgTypeControl    MsgType = 0x00
	MsgTypePLDM       MsgType = 0x01
	MsgTypeNCSI       MsgType = 0x02
	MsgTypeEthernet   MsgType = 0x03
	MsgTypeNVMe       MsgType = 0x04
	MsgTypeSPDM       MsgType = 0x05
	MsgTypeSecured    MsgType = 0x06
	MsgTypeVendorPCI  MsgType = 0x7E
	MsgTypeVendorIANA MsgType = 0x7F

	// msgTypeMask masks the seven type bits of the message header byte.
	msgTypeMask byte = 0x7F

	// msgICBit is the integrity check bit of the message header byte.
	msgICBit byte = 0x80
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeControl:
		return "control"
	case MsgTypePLDM:
		return "pldm"
	case MsgTypeNCSI:
		return "ncsi"
	case MsgTypeEthernet:
		return "ethernet"
	case MsgTypeNVMe:
		return "nvme"
	case MsgTypeSPDM:
		return "spdm"
	case MsgTypeSecured:
		return "secured"
	case MsgTypeVendorPCI:
		return "vendor-pci"
	case MsgTypeVendorIANA:
		return "vendor-iana"
	default:
		return fmt.Sprintf("type:%#02x", uint8(t))
	}
}

// MsgIC is the message integrity check flag. If set, the message carries a type specific integrity check.
type MsgIC bool

// MessageHeader encodes the one byte message header, which precedes the payload of a message's first packet.
func MessageHeader(typ MsgType, ic MsgIC) byte {
	b := byte(typ) & msgTypeMask
	if ic {
		b |= msgICBit
	}
	return b
}

// ParseMessageHeader splits a message header byte into its type and integrity check flag.
func ParseMessageHeader(b byte) (MsgType, MsgIC) {
	return MsgType(b & msgTypeMask), MsgIC(b&msgICBit != 0)
}

// AppCookie is an opaque value to associate messages with some application context, e.g., a router's handle.
type AppCookie uint

func (c AppCookie) String() string {
	return fmt.Sprintf("cookie:%d", uint(c))
}
