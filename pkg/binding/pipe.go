// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package binding

import (
	"fmt"
	"io"
	"sync"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// pipeQueueSize is the amount of packets buffered for a PipeEnd.
const pipeQueueSize = 128

// PipeEnd is one side of an in-memory Binding pair, created by NewPipe. It is useful for testing and for connecting
// endpoints within the same process.
type PipeEnd struct {
	mtu    int
	peer   *PipeEnd
	inChan chan []byte

	// dropEvery drops each nth outgoing packet, if not zero.
	dropEvery int
	counter   int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPipe creates two connected PipeEnds with the same MTU.
func NewPipe(mtu int) (a, b *PipeEnd) {
	a = newPipeEnd(mtu)
	b = newPipeEnd(mtu)
	a.peer, b.peer = b, a
	return
}

// NewLossyPipe creates two connected PipeEnds, each dropping every nth packet it sends.
func NewLossyPipe(mtu, n int) (a, b *PipeEnd) {
	a, b = NewPipe(mtu)
	a.dropEvery, b.dropEvery = n, n
	return
}

func newPipeEnd(mtu int) *PipeEnd {
	return &PipeEnd{
		mtu:    mtu,
		inChan: make(chan []byte, pipeQueueSize),
		closed: make(chan struct{}),
	}
}

// deliver a packet from the peer to this PipeEnd.
func (p *PipeEnd) deliver(pkt []byte) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.inChan <- pkt:
		return nil
	default:
		return fmt.Errorf("queue of %v is full", p)
	}
}

func (p *PipeEnd) SendVectored(frag *estack.Fragmenter, payload [][]byte) (mctp.Tag, error) {
	buf := make([]byte, p.mtu)
	return Transmit(frag, payload, buf, func(pkt []byte) error {
		p.counter++
		if p.dropEvery != 0 && p.counter%p.dropEvery == 0 {
			return nil
		}

		return p.peer.deliver(append([]byte(nil), pkt...))
	})
}

func (p *PipeEnd) Mtu() int {
	return p.mtu
}

func (p *PipeEnd) Recv() ([]byte, error) {
	select {
	case pkt := <-p.inChan:
		return pkt, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *PipeEnd) String() string {
	return fmt.Sprintf("pipe/mtu:%d", p.mtu)
}
