// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Sender is used by a Router to send data. It is implemented by a transport binding for sending packets.
type Sender interface {
	// SendVectored transmits all packets created by the Fragmenter for this payload and returns the used tag.
	SendVectored(frag *estack.Fragmenter, payload [][]byte) (mctp.Tag, error)

	// Mtu is the maximum size of an MCTP packet, without the transport binding's header.
	Mtu() int
}
