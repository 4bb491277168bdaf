// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/node"
)

// ErrConnectorClosed is returned by a closed WebSocketAgentConnector.
var ErrConnectorClosed = errors.New("connector is closed")

// WebSocketAgentConnector is the client side version of the WebSocketAgent.
type WebSocketAgentConnector struct {
	conn *websocket.Conn

	// exchangeMutex serializes requests, each waiting for its reply.
	exchangeMutex sync.Mutex
	replyChan     chan webAgentMessage

	msgInChan chan node.Message

	closeOnce sync.Once
	closeSyn  chan struct{}
	closeAck  chan struct{}
}

// NewWebSocketAgentConnector creates a new WebSocketAgentConnector connection to a WebSocketAgent.
func NewWebSocketAgentConnector(apiUrl string) (wac *WebSocketAgentConnector, err error) {
	var conn *websocket.Conn
	if conn, _, err = websocket.DefaultDialer.Dial(apiUrl, nil); err != nil {
		return
	}

	wac = &WebSocketAgentConnector{
		conn: conn,

		replyChan: make(chan webAgentMessage, 1),
		msgInChan: make(chan node.Message, 64),

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	go wac.handleReader()

	return
}

func (wac *WebSocketAgentConnector) writeMessage(msg webAgentMessage) error {
	wc, wcErr := wac.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

func (wac *WebSocketAgentConnector) readMessage() (msg webAgentMessage, err error) {
	if mt, r, rErr := wac.conn.NextReader(); rErr != nil {
		err = rErr
		return
	} else if mt != websocket.BinaryMessage {
		err = fmt.Errorf("expected binary message, got %d", mt)
		return
	} else {
		msg, err = unmarshalCbor(r)
		return
	}
}

// handleReader separates pushed messages from replies.
func (wac *WebSocketAgentConnector) handleReader() {
	defer close(wac.closeAck)

	for {
		msg, err := wac.readMessage()
		if err != nil {
			wac.close()
			return
		}

		if m, ok := msg.(*wamMessage); ok {
			select {
			case wac.msgInChan <- m.msg:
			case <-wac.closeSyn:
				return
			}
		} else {
			select {
			case wac.replyChan <- msg:
			case <-wac.closeSyn:
				return
			}
		}
	}
}

// exchange sends a request and waits for the server's reply.
func (wac *WebSocketAgentConnector) exchange(msg webAgentMessage) (webAgentMessage, error) {
	wac.exchangeMutex.Lock()
	defer wac.exchangeMutex.Unlock()

	if err := wac.writeMessage(msg); err != nil {
		return nil, err
	}

	select {
	case reply := <-wac.replyChan:
		return reply, nil
	case <-wac.closeSyn:
		return nil, ErrConnectorClosed
	}
}

func (wac *WebSocketAgentConnector) bind(kind bindKind, value uint8) (mctp.AppCookie, error) {
	reply, err := wac.exchange(newBindMessage(kind, value))
	if err != nil {
		return 0, err
	}

	switch reply := reply.(type) {
	case *wamHandle:
		return reply.cookie, nil
	case *wamStatus:
		return 0, fmt.Errorf("binding failed: %s", reply.errorMsg)
	default:
		return 0, fmt.Errorf("expected wamHandle, got %T", reply)
	}
}

// Listen binds a listener for a message type.
func (wac *WebSocketAgentConnector) Listen(typ mctp.MsgType) (mctp.AppCookie, error) {
	return wac.bind(bindListener, uint8(typ))
}

// Request binds a request context for a remote EID.
func (wac *WebSocketAgentConnector) Request(eid mctp.Eid) (mctp.AppCookie, error) {
	return wac.bind(bindRequest, uint8(eid))
}

// Send a message with one of this client's handles. The used tag is returned.
func (wac *WebSocketAgentConnector) Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC,
	cookie mctp.AppCookie, payload []byte) (mctp.Tag, error) {
	reply, err := wac.exchange(&wamSend{
		cookie:  cookie,
		eid:     eid,
		typ:     typ,
		tag:     tag,
		ic:      ic,
		payload: payload,
	})
	if err != nil {
		return mctp.Tag{}, err
	}

	if sent, ok := reply.(*wamSent); !ok {
		return mctp.Tag{}, fmt.Errorf("expected wamSent, got %T", reply)
	} else if sent.errorMsg != "" {
		return mctp.Tag{}, fmt.Errorf("sending failed: %s", sent.errorMsg)
	} else {
		return sent.tag, nil
	}
}

// Unbind one of this client's handles.
func (wac *WebSocketAgentConnector) Unbind(cookie mctp.AppCookie) error {
	reply, err := wac.exchange(&wamUnbind{cookie})
	if err != nil {
		return err
	}

	if status, ok := reply.(*wamStatus); !ok {
		return fmt.Errorf("expected wamStatus, got %T", reply)
	} else if status.errorMsg != "" {
		return fmt.Errorf("unbinding failed: %s", status.errorMsg)
	} else {
		return nil
	}
}

// ReadMessage returns the next received message of any handle. This method blocks until a message arrives, the
// timeout expires or the connector is closed. A zero timeout waits forever.
func (wac *WebSocketAgentConnector) ReadMessage(timeout time.Duration) (msg node.Message, err error) {
	var timeoutChan <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutChan = timer.C
	}

	select {
	case msg = <-wac.msgInChan:
		return
	case <-timeoutChan:
		err = fmt.Errorf("no message within %v: %w", timeout, mctp.ErrTimedOut)
		return
	case <-wac.closeSyn:
		err = ErrConnectorClosed
		return
	}
}

func (wac *WebSocketAgentConnector) close() {
	wac.closeOnce.Do(func() {
		close(wac.closeSyn)
		_ = wac.conn.Close()
	})
}

// Close this WebSocketAgentConnector.
func (wac *WebSocketAgentConnector) Close() {
	wac.close()
	<-wac.closeAck
}
