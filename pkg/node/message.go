// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package node

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/estack"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// Message is a received MCTP message, detached from the router's buffers.
type Message struct {
	Source mctp.Eid
	Dest   mctp.Eid
	Type   mctp.MsgType
	IC     mctp.MsgIC
	Tag    mctp.Tag

	// Cookie is the AppCookie of the listener or request which received this Message.
	Cookie mctp.AppCookie

	Payload []byte
}

func newMessage(msg *estack.Message, cookie mctp.AppCookie) Message {
	return Message{
		Source:  msg.Source,
		Dest:    msg.Dest,
		Type:    msg.Type,
		IC:      msg.IC,
		Tag:     msg.Tag,
		Cookie:  cookie,
		Payload: append([]byte(nil), msg.Payload...),
	}
}

func (m Message) String() string {
	return fmt.Sprintf("Message(%v -> %v, Type: %v, Tag: %v, %v, Length: %d)",
		m.Source, m.Dest, m.Type, m.Tag, m.Cookie, len(m.Payload))
}

// Handler is called for each Message of a listener or request.
type Handler func(msg Message)

// subscriberQueueSize is the amount of Messages queued for a Handler.
const subscriberQueueSize = 32

// subscriber calls a Handler sequentially for each queued Message within its own goroutine.
type subscriber struct {
	cookie  mctp.AppCookie
	handler Handler
	queue   chan Message
}

func newSubscriber(cookie mctp.AppCookie, handler Handler) *subscriber {
	s := &subscriber{
		cookie:  cookie,
		handler: handler,
		queue:   make(chan Message, subscriberQueueSize),
	}
	go s.handle()
	return s
}

func (s *subscriber) handle() {
	for msg := range s.queue {
		s.handler(msg)
	}
}

// deliver queues a Message without blocking. Messages for an overloaded Handler are dropped.
func (s *subscriber) deliver(msg Message) {
	select {
	case s.queue <- msg:
	default:
		log.WithFields(log.Fields{
			"cookie":  s.cookie,
			"message": msg,
		}).Warn("Handler's queue is full, dropping message")
	}
}

func (s *subscriber) close() {
	close(s.queue)
}
