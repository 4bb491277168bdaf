// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package serial

import (
	"errors"
	"fmt"

	"github.com/howeyc/crc16"
)

// A serial frame carries exactly one MCTP packet:
//
//     +------+----------+------------+----------------+--------+--------+------+
//     | 0x7E | Revision | Byte Count | MCTP packet... | FCS hi | FCS lo | 0x7E |
//     +------+----------+------------+----------------+--------+--------+------+
//
// The byte count is the unescaped length of the MCTP packet. The FCS-16 covers the revision, the byte count and the
// unescaped MCTP packet. All bytes between the two flags are escaped.

const (
	frameFlag    byte = 0x7E
	frameEscape  byte = 0x7D
	frameXor     byte = 0x20
	frameVersion byte = 0x01

	// frameOverhead are the unescaped bytes next to the packet, excluding flags.
	frameOverhead int = 4

	// MaxMtu is the largest MCTP packet a frame's byte count can describe.
	MaxMtu int = 0xFF
)

var (
	// ErrFrameChecksum is returned for a frame with a mismatching FCS.
	ErrFrameChecksum = errors.New("frame check sequence mismatch")

	// ErrFrameMalformed is returned for frames with an invalid revision, length or escaping.
	ErrFrameMalformed = errors.New("malformed frame")
)

var fcsTable = crc16.MakeTable(crc16.CCITT)

// fcs calculates the FCS-16 (RFC 1662) over the unescaped frame content.
func fcs(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}

// appendEscaped appends a byte to dst, escaping flag and escape bytes.
func appendEscaped(dst []byte, b byte) []byte {
	if b == frameFlag || b == frameEscape {
		return append(dst, frameEscape, b^frameXor)
	}
	return append(dst, b)
}

// Encode appends a frame for an MCTP packet to dst and returns the extended slice.
func Encode(dst, pkt []byte) ([]byte, error) {
	if len(pkt) == 0 || len(pkt) > MaxMtu {
		return dst, fmt.Errorf("packet of %d bytes cannot be framed: %w", len(pkt), ErrFrameMalformed)
	}

	var content [MaxMtu + 2]byte
	content[0], content[1] = frameVersion, byte(len(pkt))
	n := 2 + copy(content[2:], pkt)
	crc := fcs(content[:n])

	dst = append(dst, frameFlag)
	for _, b := range content[:n] {
		dst = appendEscaped(dst, b)
	}
	dst = appendEscaped(dst, byte(crc>>8))
	dst = appendEscaped(dst, byte(crc))
	return append(dst, frameFlag), nil
}

// Decoder extracts MCTP packets from a stream of serial frames.
//
// Bytes before the first flag are skipped. Each flag terminates the current frame and starts a new one, so two
// consecutive frames might share a flag.
type Decoder struct {
	inFrame bool
	escaped bool

	length int
	buf    [MaxMtu + frameOverhead]byte
}

// NewDecoder creates a Decoder, waiting for the first flag.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) reset(inFrame bool) {
	d.inFrame = inFrame
	d.escaped = false
	d.length = 0
}

// Feed the next byte into this Decoder.
//
// If this byte completes a frame, its MCTP packet is returned. The returned slice is only valid until the next call
// of Feed. An invalid frame results in an error; the Decoder continues with the next frame.
func (d *Decoder) Feed(b byte) (pkt []byte, err error) {
	if b == frameFlag {
		if d.inFrame && d.length > 0 {
			pkt, err = d.frame()
		}
		d.reset(true)
		return
	}

	if !d.inFrame {
		return
	}

	if b == frameEscape {
		if d.escaped {
			err = fmt.Errorf("double escape: %w", ErrFrameMalformed)
			d.reset(false)
		} else {
			d.escaped = true
		}
		return
	}

	if d.escaped {
		b ^= frameXor
		d.escaped = false
	}

	if d.length == len(d.buf) {
		err = fmt.Errorf("frame exceeds %d bytes: %w", len(d.buf), ErrFrameMalformed)
		d.reset(false)
		return
	}

	d.buf[d.length] = b
	d.length++
	return
}

// frame validates a completely received frame and returns its MCTP packet.
func (d *Decoder) frame() ([]byte, error) {
	data := d.buf[:d.length]

	if d.escaped {
		return nil, fmt.Errorf("frame ends within an escape sequence: %w", ErrFrameMalformed)
	}
	if len(data) < frameOverhead+1 {
		return nil, fmt.Errorf("frame of %d bytes is too short: %w", len(data), ErrFrameMalformed)
	}
	if data[0] != frameVersion {
		return nil, fmt.Errorf("frame revision %#02x: %w", data[0], ErrFrameMalformed)
	}
	if n := int(data[1]); n != len(data)-frameOverhead {
		return nil, fmt.Errorf("byte count %d mismatches %d bytes: %w", n, len(data)-frameOverhead, ErrFrameMalformed)
	}

	content, trailer := data[:len(data)-2], data[len(data)-2:]
	if expected, actual := fcs(content), uint16(trailer[0])<<8|uint16(trailer[1]); expected != actual {
		return nil, fmt.Errorf("expected %#04x, got %#04x: %w", expected, actual, ErrFrameChecksum)
	}

	return content[2:], nil
}
