// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package router

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Send a message.
//
// When responding to a request received by a listener, eid and tag have to be set. A request usually won't set an
// eid, which is taken from the request's binding. When no tag is supplied for a request, a new one is allocated.
func (r *Router) Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
	buf []byte) (mctp.Tag, error) {
	return r.SendVectored(eid, typ, tag, ic, cookie, [][]byte{buf})
}

// SendVectored sends a message whose payload is the concatenation of bufs. See Send.
func (r *Router) SendVectored(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
	bufs [][]byte) (mctp.Tag, error) {
	var dest mctp.Eid
	if eid != nil {
		dest = *eid
	} else if req := r.lookupRequest(cookie); req != nil {
		dest = req.eid
	} else {
		return mctp.Tag{}, fmt.Errorf("no destination for %v: %w", cookie, mctp.ErrInvalidInput)
	}

	frag, err := r.stack.StartSend(estack.SendParams{
		Dest:       dest,
		Type:       typ,
		Tag:        tag,
		TagExpires: true,
		IC:         ic,
		Mtu:        r.sender.Mtu(),
		Cookie:     &cookie,
	})
	if err != nil {
		return mctp.Tag{}, err
	}

	sent, err := r.sender.SendVectored(frag, bufs)
	if err != nil {
		log.WithFields(log.Fields{
			"fragmenter": frag,
			"cookie":     cookie,
		}).WithError(err).Debug("Sender failed")

		if frag.Tag().Owner {
			r.stack.CancelFlow(dest, frag.Tag().Value)
		}
		return sent, err
	}

	if req := r.lookupRequest(cookie); req != nil && sent.Owner {
		req.lastTag = sent
		req.lastDest = dest
		req.pending = true
	}

	return sent, nil
}
