// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/node"
)

type webAgentClient struct {
	id       uuid.UUID
	conn     *websocket.Conn
	endpoint Endpoint

	writeMutex sync.Mutex

	cookiesMutex sync.Mutex
	cookies      map[mctp.AppCookie]struct{}

	shutdownOnce sync.Once
}

func newWebAgentClient(id uuid.UUID, conn *websocket.Conn, endpoint Endpoint) *webAgentClient {
	return &webAgentClient{
		id:       id,
		conn:     conn,
		endpoint: endpoint,
		cookies:  make(map[mctp.AppCookie]struct{}),
	}
}

func (client *webAgentClient) logger() *log.Entry {
	return log.WithField("web agent client", client.id)
}

// start handles the client's connection and blocks until it is closed.
func (client *webAgentClient) start() {
	defer client.shutdown()
	client.handleConn()
}

// shutdown closes the connection and unbinds all of this client's handles.
func (client *webAgentClient) shutdown() {
	client.shutdownOnce.Do(func() {
		client.logger().Debug("Reached shutdown")

		_ = client.conn.Close()

		client.cookiesMutex.Lock()
		defer client.cookiesMutex.Unlock()

		for cookie := range client.cookies {
			if err := client.endpoint.Unbind(cookie); err != nil {
				client.logger().WithField("cookie", cookie).WithError(err).Warn("Unbinding handle errored")
			}
		}
		client.cookies = nil
	})
}

func (client *webAgentClient) handleConn() {
	logger := client.logger()

	for {
		if messageType, reader, err := client.conn.NextReader(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Client closed the connection")
			} else {
				logger.WithError(err).Debug("Opening next WebSocket Reader errored")
			}
			return
		} else if messageType != websocket.BinaryMessage {
			logger.WithField("message type", messageType).Warn("WebSocket Reader's type is not binary")
			return
		} else if msg, err := unmarshalCbor(reader); err != nil {
			logger.WithError(err).Warn("Unmarshal CBOR errored")
			return
		} else {
			var reply webAgentMessage

			switch msg := msg.(type) {
			case *wamBind:
				if cookie, err := client.handleBind(msg); err != nil {
					reply = newStatusMessage(err)
				} else {
					reply = &wamHandle{cookie}
				}

			case *wamSend:
				tag, err := client.handleSend(msg)
				reply = newSentMessage(tag, err)

			case *wamUnbind:
				reply = newStatusMessage(client.handleUnbind(msg))

			default:
				logger.WithField("message", msg).Info("Received unknown / unsupported message")
				reply = newStatusMessage(fmt.Errorf("unsupported message type %d", msg.typeCode()))
			}

			if err := client.writeMessage(reply); err != nil {
				logger.WithField("message", msg).WithError(err).Warn("Answering message errored")
				return
			}
		}
	}
}

// forward a received message to the client.
func (client *webAgentClient) forward(msg node.Message) {
	if err := client.writeMessage(newMessageMessage(msg)); err != nil {
		client.logger().WithField("message", msg).WithError(err).Warn("Forwarding message errored")
	}
}

func (client *webAgentClient) handleBind(m *wamBind) (cookie mctp.AppCookie, err error) {
	client.cookiesMutex.Lock()
	defer client.cookiesMutex.Unlock()

	if client.cookies == nil {
		return 0, errors.New("client is shutting down")
	}

	switch m.kind {
	case bindListener:
		cookie, err = client.endpoint.Listen(mctp.MsgType(m.value), client.forward)
	case bindRequest:
		cookie, err = client.endpoint.Request(mctp.Eid(m.value), client.forward)
	}
	if err != nil {
		return
	}

	client.cookies[cookie] = struct{}{}

	client.logger().WithFields(log.Fields{
		"cookie": cookie,
		"kind":   m.kind,
		"value":  m.value,
	}).Info("Client bound handle")
	return
}

// owns checks if a cookie was bound by this client.
func (client *webAgentClient) owns(cookie mctp.AppCookie) bool {
	client.cookiesMutex.Lock()
	defer client.cookiesMutex.Unlock()

	_, ok := client.cookies[cookie]
	return ok
}

func (client *webAgentClient) handleSend(m *wamSend) (mctp.Tag, error) {
	if !client.owns(m.cookie) {
		return mctp.Tag{}, fmt.Errorf("%v is not bound by this client: %w", m.cookie, mctp.ErrBadArgument)
	}

	return client.endpoint.Send(m.eid, m.typ, m.tag, m.ic, m.cookie, m.payload)
}

func (client *webAgentClient) handleUnbind(m *wamUnbind) error {
	client.cookiesMutex.Lock()
	defer client.cookiesMutex.Unlock()

	if _, ok := client.cookies[m.cookie]; !ok {
		return fmt.Errorf("%v is not bound by this client: %w", m.cookie, mctp.ErrBadArgument)
	}

	delete(client.cookies, m.cookie)
	return client.endpoint.Unbind(m.cookie)
}

func (client *webAgentClient) writeMessage(msg webAgentMessage) error {
	client.writeMutex.Lock()
	defer client.writeMutex.Unlock()

	wc, wcErr := client.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}
