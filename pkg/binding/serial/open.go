// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package serial

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	log "github.com/sirupsen/logrus"
	tarm "github.com/tarm/serial"
)

// DefaultBaud is used for serial devices without an explicit baud query parameter.
const DefaultBaud int = 115200

// Open a Port based on an URI. The following schemes are supported:
//
//	serial:///dev/ttyUSB0?baud=115200  a serial device
//	tcp://host:port                    a TCP connection, e.g., to a serial device server
//	tcp+listen://:port                 waits for a single incoming TCP connection
func Open(uri string, mtu int) (*Port, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "serial":
		baud := DefaultBaud
		if b := u.Query().Get("baud"); b != "" {
			if baud, err = strconv.Atoi(b); err != nil {
				return nil, fmt.Errorf("invalid baud rate %q: %v", b, err)
			}
		}

		dev, err := tarm.OpenPort(&tarm.Config{Name: u.Path, Baud: baud})
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"device": u.Path,
			"baud":   baud,
		}).Info("Opened serial device")
		return NewPort(dev, u.Path, mtu)

	case "tcp":
		conn, err := dial(u.Host)
		if err != nil {
			return nil, err
		}

		log.WithField("remote", conn.RemoteAddr()).Info("Connected to TCP serial peer")
		return NewPort(conn, conn.RemoteAddr().String(), mtu)

	case "tcp+listen":
		ln, err := net.Listen("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		defer ln.Close()

		log.WithField("listen", ln.Addr()).Info("Waiting for TCP serial peer")

		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}

		log.WithField("remote", conn.RemoteAddr()).Info("Accepted TCP serial peer")
		return NewPort(conn, conn.RemoteAddr().String(), mtu)

	default:
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, uri)
	}
}
