// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/agent"
	"github.com/dtn7/mctp-go/pkg/binding/serial"
	"github.com/dtn7/mctp-go/pkg/node"
)

// daemon bundles the node with its optional HTTP server.
type daemon struct {
	node       *node.Node
	agent      *agent.WebSocketAgent
	httpServer *http.Server
}

// startDaemon opens the binding and starts all configured services.
func startDaemon(conf tomlConfig) (d *daemon, err error) {
	port, err := serial.Open(conf.Transport.Uri, conf.Transport.Mtu)
	if err != nil {
		return
	}

	d = &daemon{}
	if d.node, err = node.NewNode(port, conf.nodeConfig()); err != nil {
		_ = port.Close()
		return nil, err
	}

	if conf.Agent.Listen != "" {
		d.agent = agent.NewWebSocketAgent(d.node)

		r := mux.NewRouter()
		r.Handle("/ws", d.agent)
		r.HandleFunc("/eid", d.serveEid).Methods(http.MethodGet)

		d.httpServer = &http.Server{
			Addr:    conf.Agent.Listen,
			Handler: r,
		}

		go func() {
			if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("HTTP server errored")
			}
		}()

		log.WithField("listen", conf.Agent.Listen).Info("Started WebSocket agent")
	}

	return
}

// serveEid reports the node's current EID.
func (d *daemon) serveEid(w http.ResponseWriter, _ *http.Request) {
	eid, err := d.node.Eid()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	_, _ = fmt.Fprintf(w, "%d\n", uint8(eid))
}

// Close all services.
func (d *daemon) Close() error {
	var errs error

	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := d.httpServer.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
		d.agent.Close()
	}

	if err := d.node.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs
}
