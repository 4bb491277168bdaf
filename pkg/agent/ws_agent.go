// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/node"
)

// Endpoint is the part of a node.Node used by the WebSocketAgent.
type Endpoint interface {
	Listen(typ mctp.MsgType, h node.Handler) (mctp.AppCookie, error)
	Request(eid mctp.Eid, h node.Handler) (mctp.AppCookie, error)
	Send(eid *mctp.Eid, typ mctp.MsgType, tag *mctp.Tag, ic mctp.MsgIC, cookie mctp.AppCookie,
		payload []byte) (mctp.Tag, error)
	Unbind(cookie mctp.AppCookie) error
}

// WebSocketAgent exposes an Endpoint to WebSocket clients, e.g., the WebSocketAgentConnector.
type WebSocketAgent struct {
	endpoint Endpoint
	upgrader websocket.Upgrader

	clientsMutex sync.Mutex
	clients      map[uuid.UUID]*webAgentClient
}

// NewWebSocketAgent for an Endpoint. The ServeHTTP function must be bound to the HTTP server.
func NewWebSocketAgent(endpoint Endpoint) *WebSocketAgent {
	return &WebSocketAgent{
		endpoint: endpoint,
		upgrader: websocket.Upgrader{},
		clients:  make(map[uuid.UUID]*webAgentClient),
	}
}

// ServeHTTP must be bound to a HTTP endpoint, e.g., to /ws by a mux.Router.
func (w *WebSocketAgent) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, connErr := w.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := newWebAgentClient(uuid.New(), conn, w.endpoint)

	w.clientsMutex.Lock()
	w.clients[client.id] = client
	w.clientsMutex.Unlock()

	log.WithFields(log.Fields{
		"client": client.id,
		"remote": conn.RemoteAddr(),
	}).Info("WebSocket client connected")

	client.start()

	w.clientsMutex.Lock()
	delete(w.clients, client.id)
	w.clientsMutex.Unlock()
}

// Clients returns the amount of connected clients.
func (w *WebSocketAgent) Clients() int {
	w.clientsMutex.Lock()
	defer w.clientsMutex.Unlock()

	return len(w.clients)
}

// Close all client connections. Their handles are unbound.
func (w *WebSocketAgent) Close() {
	w.clientsMutex.Lock()
	clients := make([]*webAgentClient, 0, len(w.clients))
	for _, client := range w.clients {
		clients = append(clients, client)
	}
	w.clientsMutex.Unlock()

	for _, client := range clients {
		client.shutdown()
	}
}
