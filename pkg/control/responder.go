// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package control

import (
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Router is the part of a router.Router used by the Responder.
type Router interface {
	Eid() mctp.Eid
	SetEid(eid mctp.Eid) error
	Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
		buf []byte) (mctp.Tag, error)
}

// Responder answers control requests for a simple endpoint.
type Responder struct {
	cookie mctp.AppCookie
	types  []mctp.MsgType

	discovered bool
}

// NewResponder creates a Responder, sending responses with the control listener's AppCookie. The supported message
// types are reported by Get Message Type Support; the control type is always included.
func NewResponder(cookie mctp.AppCookie, types []mctp.MsgType) *Responder {
	r := &Responder{cookie: cookie}

	r.types = append(r.types, mctp.MsgTypeControl)
	for _, typ := range types {
		if typ != mctp.MsgTypeControl {
			r.types = append(r.types, typ)
		}
	}

	return r
}

// Discovered reports if a bus owner has marked this endpoint as discovered.
func (r *Responder) Discovered() bool {
	return r.discovered
}

// Handle a message received by the control listener.
//
// Responses, datagrams and messages of other types are ignored. Otherwise, a response is sent to the requester. The
// Message is not accessed after the response was sent.
func (r *Responder) Handle(rt Router, msg *estack.Message) error {
	if msg.Type != mctp.MsgTypeControl || !msg.Tag.IsOwner() {
		return nil
	}

	source, tag, ic := msg.Source, msg.Tag.Response(), msg.IC

	h, data, err := ParseHeader(msg.Payload)
	if err != nil {
		log.WithField("message", msg).WithError(err).Debug("Dropping malformed control message")
		return nil
	} else if !h.Request || h.Datagram {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"source": source,
		"header": h,
	})

	var (
		buf    = h.Response().Append(make([]byte, 0, 16))
		resp   []byte
		assign func() error
	)
	switch h.Command {
	case CmdSetEndpointID:
		resp, assign = r.setEndpointID(rt, data, buf)
	case CmdGetEndpointID:
		resp = r.getEndpointID(rt, data, buf)
	case CmdGetVersionSupport:
		resp = r.getVersionSupport(data, buf)
	case CmdGetMessageTypeSupport:
		resp = r.getMessageTypeSupport(data, buf)
	default:
		resp = append(buf, byte(CompletionUnsupportedCmd))
	}

	logger.WithField("completion", CompletionCode(resp[headerLen])).Debug("Answering control request")

	_, err = rt.Send(&source, mctp.MsgTypeControl, &tag, ic, r.cookie, resp)
	if err != nil {
		logger.WithError(err).Warn("Sending control response errored")
	}

	if assign != nil {
		if assignErr := assign(); assignErr != nil {
			logger.WithError(assignErr).Warn("Assigning EID errored")
			err = multierror.Append(err, assignErr)
		}
	}
	return err
}

// setEndpointID creates the response and, if accepted, the assignment of the new EID. The assignment happens after
// sending the response from the old EID, which the requester expects the response from.
func (r *Responder) setEndpointID(rt Router, data, buf []byte) (resp []byte, assign func() error) {
	if len(data) != 2 {
		return append(buf, byte(CompletionInvalidLength)), nil
	}

	op, eid := SetEidOperation(data[0]&setEidOperationMask), mctp.Eid(data[1])

	switch op {
	case SetEidSet, SetEidForce:
		if !eid.IsNormal() {
			return append(buf, byte(CompletionInvalidData)), nil
		}

		assign = func() error {
			if err := rt.SetEid(eid); err != nil {
				return err
			}

			log.WithField("eid", eid).Info("EID was assigned by the bus owner")
			return nil
		}
		return append(buf, byte(CompletionSuccess), setEidAccepted, byte(eid), 0), assign

	case SetEidDiscovered:
		r.discovered = true
		return append(buf, byte(CompletionSuccess), setEidAccepted, byte(rt.Eid()), 0), nil

	default:
		// Resetting requires a static EID.
		return append(buf, byte(CompletionInvalidData)), nil
	}
}

func (r *Responder) getEndpointID(rt Router, data, buf []byte) []byte {
	if len(data) != 0 {
		return append(buf, byte(CompletionInvalidLength))
	}

	// A simple endpoint with a dynamic EID, no medium specific information.
	return append(buf, byte(CompletionSuccess), byte(rt.Eid()), 0x00, 0x00)
}

func (r *Responder) getVersionSupport(data, buf []byte) []byte {
	if len(data) != 1 {
		return append(buf, byte(CompletionInvalidLength))
	}

	// 0xFF queries the base specification.
	if typ := data[0]; typ != 0xFF && typ != byte(mctp.MsgTypeControl) {
		return append(buf, byte(CompletionTypeNotSupported))
	}

	v := VersionBase
	return append(buf, byte(CompletionSuccess), 1, v.Major, v.Minor, v.Update, v.Alpha)
}

func (r *Responder) getMessageTypeSupport(data, buf []byte) []byte {
	if len(data) != 0 {
		return append(buf, byte(CompletionInvalidLength))
	}

	buf = append(buf, byte(CompletionSuccess), byte(len(r.types)))
	for _, typ := range r.types {
		buf = append(buf, byte(typ))
	}
	return buf
}
