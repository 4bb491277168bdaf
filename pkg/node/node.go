// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package node runs a router.Router on top of a transport binding.
//
// The router itself is synchronous and must not be shared between goroutines. A Node owns a router and serializes
// all calls within one goroutine, while offering a concurrency safe API. Incoming packets are read by another
// goroutine and the router's timers are driven by the Node.
package node

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/binding"
	"github.com/dtn7/mctp-go/pkg/control"
	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/router"
)

// ErrClosed is returned for operations on a closed Node.
var ErrClosed = errors.New("node is closed")

// Config for a Node.
type Config struct {
	// Eid is the initial EID, which might be the null EID for endpoints awaiting an assignment.
	Eid mctp.Eid

	// Listeners and Requests are the router's table sizes. Zero selects the router's defaults.
	Listeners int
	Requests  int

	// Control enables the built-in control protocol responder, which occupies one listener.
	Control bool

	// ControlTypes are additional message types reported by the control responder.
	ControlTypes []mctp.MsgType
}

// Node serves a router.Router with a binding.Binding.
type Node struct {
	router  *router.Router
	binding binding.Binding
	start   time.Time

	subscribers map[mctp.AppCookie]*subscriber

	responder     *control.Responder
	controlCookie mctp.AppCookie

	opChan  chan func()
	pktChan chan []byte

	closeOnce sync.Once
	stopSyn   chan struct{}
	stopAck   chan struct{}
}

// NewNode creates and starts a Node. The Node takes ownership of the Binding and closes it on Close.
func NewNode(b binding.Binding, conf Config) (*Node, error) {
	if conf.Listeners == 0 {
		conf.Listeners = router.DefaultListenerHandles
	}
	if conf.Requests == 0 {
		conf.Requests = router.DefaultRequestHandles
	}

	n := &Node{
		binding:     b,
		start:       time.Now(),
		subscribers: make(map[mctp.AppCookie]*subscriber),
		opChan:      make(chan func()),
		pktChan:     make(chan []byte, 16),
		stopSyn:     make(chan struct{}),
		stopAck:     make(chan struct{}),
	}

	n.router = router.NewRouter(conf.Eid, n.now(), b, conf.Listeners, conf.Requests)

	if conf.Control {
		if cookie, err := n.router.Listener(mctp.MsgTypeControl); err != nil {
			return nil, err
		} else {
			n.controlCookie = cookie
			n.responder = control.NewResponder(cookie, conf.ControlTypes)
		}
	}

	log.WithFields(log.Fields{
		"eid":       conf.Eid,
		"binding":   b,
		"listeners": conf.Listeners,
		"requests":  conf.Requests,
		"control":   conf.Control,
	}).Info("Starting MCTP node")

	go n.reader()
	go n.handler()

	return n, nil
}

// now is the Node's monotonic clock in milliseconds.
func (n *Node) now() uint64 {
	return uint64(time.Since(n.start).Milliseconds())
}

// reader passes all incoming packets from the Binding to the handler.
func (n *Node) reader() {
	for {
		pkt, err := n.binding.Recv()
		if err != nil {
			select {
			case <-n.stopSyn:
				log.Debug("Node's reader stops after closing")
			default:
				log.WithError(err).Warn("Receiving from binding errored, stopping reader")
			}
			return
		}

		select {
		case n.pktChan <- append([]byte(nil), pkt...):
		case <-n.stopSyn:
			return
		}
	}
}

// handler owns the router and executes all operations on it.
func (n *Node) handler() {
	defer close(n.stopAck)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-n.stopSyn:
			return

		case op := <-n.opChan:
			op()

		case pkt := <-n.pktChan:
			if err := n.router.Inbound(pkt); err != nil {
				log.WithError(err).Debug("Router rejected incoming packet")
			}
			n.dispatch()

		case <-timer.C:
			next, err := n.router.Update(n.now())
			if err != nil {
				log.WithError(err).Warn("Updating router errored")
				next = 100
			}
			timer.Reset(time.Duration(next) * time.Millisecond)
		}
	}
}

// dispatch all retained messages to their subscribers or the control responder.
func (n *Node) dispatch() {
	if n.responder != nil {
		for msg := n.router.Recv(n.controlCookie); msg != nil; msg = n.router.Recv(n.controlCookie) {
			if err := n.responder.Handle(n.router, msg); err != nil {
				log.WithError(err).Debug("Control responder errored")
			}
		}
	}

	for cookie, s := range n.subscribers {
		for msg := n.router.Recv(cookie); msg != nil; msg = n.router.Recv(cookie) {
			s.deliver(newMessage(msg, cookie))
		}
	}
}

// exec runs an operation within the handler's goroutine and waits for its completion.
func (n *Node) exec(op func()) error {
	done := make(chan struct{})

	select {
	case n.opChan <- func() { op(); close(done) }:
		<-done
		return nil

	case <-n.stopAck:
		return ErrClosed
	}
}

// Close this Node, its Binding and all subscribed Handlers.
func (n *Node) Close() error {
	err := ErrClosed
	n.closeOnce.Do(func() {
		err = n.close()
	})
	return err
}

func (n *Node) close() error {
	close(n.stopSyn)
	<-n.stopAck

	var result *multierror.Error

	if err := n.binding.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	for cookie, s := range n.subscribers {
		if err := n.router.Unbind(cookie); err != nil {
			result = multierror.Append(result, err)
		}
		s.close()
	}
	n.subscribers = nil

	log.WithField("binding", n.binding).Info("Closed MCTP node")
	return result.ErrorOrNil()
}
