// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/mctp-go/pkg/binding/serial"
	"github.com/dtn7/mctp-go/pkg/mctp"
	"github.com/dtn7/mctp-go/pkg/node"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core      coreConf
	Logging   logConf
	Transport transportConf
	Control   controlConf
	Agent     agentConf
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	Eid       int
	Listeners int
	Requests  int
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// transportConf describes the binding, see serial.Open for the URI's format.
type transportConf struct {
	Uri string
	Mtu int
}

// controlConf describes the built-in control protocol responder.
type controlConf struct {
	Enabled bool
	Types   []int
}

// agentConf describes the WebSocket agent's HTTP server. An empty address disables the agent.
type agentConf struct {
	Listen string
}

// checkValid reports all problems of a configuration at once.
func (conf tomlConfig) checkValid() (errs error) {
	if eid := conf.Core.Eid; eid < 0 || eid > 0xFF {
		errs = multierror.Append(errs, fmt.Errorf("core.eid %d exceeds a byte", eid))
	} else if e := mctp.Eid(eid); e != mctp.EidNull && !e.IsNormal() {
		errs = multierror.Append(errs, fmt.Errorf("core.eid %v is reserved", e))
	}

	if conf.Core.Listeners < 0 {
		errs = multierror.Append(errs, fmt.Errorf("core.listeners is negative"))
	}
	if conf.Core.Requests < 0 {
		errs = multierror.Append(errs, fmt.Errorf("core.requests is negative"))
	}
	if conf.Control.Enabled && conf.Core.Listeners == 1 && conf.Agent.Listen != "" {
		errs = multierror.Append(errs, fmt.Errorf("control responder occupies the only listener"))
	}

	if conf.Transport.Uri == "" {
		errs = multierror.Append(errs, fmt.Errorf("transport.uri is empty"))
	}
	if mtu := conf.Transport.Mtu; mtu != 0 && (mtu <= mctp.HeaderLen || mtu > serial.MaxMtu) {
		errs = multierror.Append(errs, fmt.Errorf("transport.mtu %d is not within (%d, %d]", mtu, mctp.HeaderLen, serial.MaxMtu))
	}

	for _, typ := range conf.Control.Types {
		if typ < 0 || typ > 0x7F {
			errs = multierror.Append(errs, fmt.Errorf("control.types contains invalid message type %d", typ))
		}
	}

	return
}

// nodeConfig derives the node.Config from a valid configuration.
func (conf tomlConfig) nodeConfig() node.Config {
	types := make([]mctp.MsgType, len(conf.Control.Types))
	for i, typ := range conf.Control.Types {
		types[i] = mctp.MsgType(typ)
	}

	return node.Config{
		Eid:          mctp.Eid(conf.Core.Eid),
		Listeners:    conf.Core.Listeners,
		Requests:     conf.Core.Requests,
		Control:      conf.Control.Enabled,
		ControlTypes: types,
	}
}

// configureLogging applies the Logging-configuration block to logrus.
func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// parseConfig reads and validates the TOML configuration.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	err = conf.checkValid()
	return
}
