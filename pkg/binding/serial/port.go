// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package serial

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/binding"
	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// DefaultMtu is the baseline MCTP transmission unit of 64 bytes payload, including the MCTP header.
const DefaultMtu int = 64 + mctp.HeaderLen

// Port is a serial Binding on top of any io.ReadWriteCloser, e.g., a serial device or a TCP connection.
type Port struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	name   string
	mtu    int

	decoder *Decoder

	writeMutex sync.Mutex
	pktBuf     []byte
	frameBuf   []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPort creates a Port for an io.ReadWriteCloser. An MTU of zero selects the DefaultMtu.
func NewPort(rwc io.ReadWriteCloser, name string, mtu int) (*Port, error) {
	if mtu == 0 {
		mtu = DefaultMtu
	}
	if mtu <= mctp.HeaderLen || mtu > MaxMtu {
		return nil, fmt.Errorf("MTU %d is not within (%d, %d]: %w", mtu, mctp.HeaderLen, MaxMtu, mctp.ErrBadArgument)
	}

	return &Port{
		rwc:      rwc,
		reader:   bufio.NewReader(rwc),
		name:     name,
		mtu:      mtu,
		decoder:  NewDecoder(),
		pktBuf:   make([]byte, mtu),
		frameBuf: make([]byte, 0, 2*(mtu+frameOverhead)+2),
		closed:   make(chan struct{}),
	}, nil
}

// SendVectored frames and writes all packets of a message and returns the used tag.
func (p *Port) SendVectored(frag *estack.Fragmenter, payload [][]byte) (mctp.Tag, error) {
	p.writeMutex.Lock()
	defer p.writeMutex.Unlock()

	return binding.Transmit(frag, payload, p.pktBuf, func(pkt []byte) (err error) {
		if p.frameBuf, err = Encode(p.frameBuf[:0], pkt); err != nil {
			return
		}

		_, err = p.rwc.Write(p.frameBuf)
		return
	})
}

// Mtu returns the maximum MCTP packet size, without the serial framing.
func (p *Port) Mtu() int {
	return p.mtu
}

// Recv reads until the next valid frame. Invalid frames are logged and skipped.
func (p *Port) Recv() ([]byte, error) {
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			select {
			case <-p.closed:
				return nil, io.EOF
			default:
				return nil, err
			}
		}

		if pkt, err := p.decoder.Feed(b); err != nil {
			log.WithFields(log.Fields{
				"port":  p,
				"error": err,
			}).Warn("Dropping invalid serial frame")
		} else if pkt != nil {
			return pkt, nil
		}
	}
}

// Close the underlying stream, which also interrupts a blocking Recv.
func (p *Port) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.rwc.Close()
	})
	return
}

// String describes this Port as a serial URI.
func (p *Port) String() string {
	return fmt.Sprintf("serial://%s", p.name)
}
