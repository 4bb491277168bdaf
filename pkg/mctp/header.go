// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package mctp

import "fmt"

// Header is the MCTP transport header, present at the beginning of each packet.
//
// The header has a fixed size of four bytes. Its first byte holds the header version in the lower four bits,
// followed by the destination and the source EID. The last byte contains the packet flags, the two bit packet
// sequence number and the tag.
//
//	  0   1   2   3   4   5   6   7
//	+---+---+---+---+---+---+---+---+
//	|   Reserved    |  Hdr Version  |
//	+---+---+---+---+---+---+---+---+
//	|        Destination EID        |
//	+---+---+---+---+---+---+---+---+
//	|           Source EID          |
//	+---+---+---+---+---+---+---+---+
//	|SOM|EOM|Pkt Seq| TO|  Msg Tag  |
//	+---+---+---+---+---+---+---+---+
//
// The start of message (SOM) flag is set for the first packet of a message, the end of message (EOM) flag for the
// last one. A single packet message has both flags set.
type Header struct {
	Dest   Eid
	Source Eid
	SOM    bool
	EOM    bool
	Seq    uint8
	Tag    Tag
}

const (
	// HeaderLen is the size of an encoded Header.
	HeaderLen int = 4

	// HeaderVersion is the only supported header version, defined by DSP0236 1.x.
	HeaderVersion byte = 0x01

	headerVersionMask byte = 0x0F
	flagSOM           byte = 0x80
	flagEOM           byte = 0x40
	flagTO            byte = 0x08
	seqShift               = 4
	seqMask           byte = 0x03
)

// Put encodes the Header into the first HeaderLen bytes of b, which must be large enough.
func (h Header) Put(b []byte) {
	_ = b[HeaderLen-1]

	var flags byte
	if h.SOM {
		flags |= flagSOM
	}
	if h.EOM {
		flags |= flagEOM
	}
	flags |= (h.Seq & seqMask) << seqShift
	if h.Tag.Owner {
		flags |= flagTO
	}
	flags |= byte(h.Tag.Value & TagValueMax)

	b[0] = HeaderVersion
	b[1] = byte(h.Dest)
	b[2] = byte(h.Source)
	b[3] = flags
}

// ParseHeader decodes the Header of a packet. The packet must be longer than a plain header because each MCTP packet
// carries at least one byte of payload.
func ParseHeader(pkt []byte) (h Header, err error) {
	if len(pkt) <= HeaderLen {
		err = fmt.Errorf("packet of %d bytes is too short: %w", len(pkt), ErrInvalidInput)
		return
	}

	if v := pkt[0] & headerVersionMask; v != HeaderVersion {
		err = fmt.Errorf("header version %d: %w", v, ErrUnsupported)
		return
	}

	flags := pkt[3]
	h = Header{
		Dest:   Eid(pkt[1]),
		Source: Eid(pkt[2]),
		SOM:    flags&flagSOM != 0,
		EOM:    flags&flagEOM != 0,
		Seq:    flags >> seqShift & seqMask,
		Tag: Tag{
			Owner: flags&flagTO != 0,
			Value: TagValue(flags) & TagValueMax,
		},
	}
	return
}

func (h Header) String() string {
	return fmt.Sprintf("Header(%v -> %v, SOM: %t, EOM: %t, Seq: %d, Tag: %v)",
		h.Source, h.Dest, h.SOM, h.EOM, h.Seq, h.Tag)
}

// NextSeq returns the succeeding packet sequence number.
func NextSeq(seq uint8) uint8 {
	return (seq + 1) & seqMask
}
