// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package binding contains the common parts of MCTP transport bindings.
//
// A transport binding carries MCTP packets over some physical medium. Its outgoing side satisfies the router.Sender
// interface, its incoming side delivers single packets without any binding specific header.
package binding

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Binding is the interface for transport bindings.
type Binding interface {
	// SendVectored transmits all packets of a message and returns the used tag.
	SendVectored(frag *estack.Fragmenter, payload [][]byte) (mctp.Tag, error)

	// Mtu returns the maximum MCTP packet size, without this binding's header.
	Mtu() int

	// Recv waits for the next incoming packet. This method blocks. The returned slice might be reused by the next
	// call. After Close, Recv returns io.EOF.
	Recv() ([]byte, error)

	// Close this Binding. Furthermore, the Recv method should be interrupted.
	Close() error
}

// Transmit creates all packets of a Fragmenter in buf and passes each to tx. The Fragmenter's tag is returned.
func Transmit(frag *estack.Fragmenter, payload [][]byte, buf []byte, tx func(pkt []byte) error) (mctp.Tag, error) {
	for {
		pkt, fin, err := frag.FragmentVectored(payload, buf)
		logger := log.WithField("fragmenter", frag)

		if err != nil {
			logger.WithError(err).Warn("Creating packet errored")
			return mctp.Tag{}, err
		} else if err := tx(pkt); err != nil {
			logger.WithError(err).Warn("Transmitting packet errored")
			return mctp.Tag{}, fmt.Errorf("transmitting packet failed (%v): %w", err, mctp.ErrTxFailure)
		} else if fin {
			logger.Debug("Transmitted last packet")
			return frag.Tag(), nil
		}
	}
}
