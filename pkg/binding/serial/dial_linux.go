// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package serial

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// A remote serial line should be detected as lost within a few seconds. Thus, the keepalive probes are configured
// more aggressively than the defaults, see tcp(7).

// dialControl sets the TCP keepalive and user timeout socket options.
func dialControl(_, _ string, rawConn syscall.RawConn) (err error) {
	opts := []struct {
		opt, value int
	}{
		{unix.TCP_KEEPCNT, 2},
		{unix.TCP_KEEPIDLE, 5},
		{unix.TCP_KEEPINTVL, 2},
		{unix.TCP_USER_TIMEOUT, 5000},
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		if err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return
		}
		for _, o := range opts {
			if err = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, o.opt, o.value); err != nil {
				return
			}
		}
	})
	if ctrlErr != nil {
		err = ctrlErr
	}
	return
}

// dial a new TCP connection with socket options set.
func dial(address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: time.Second,
		Control: dialControl,
	}
	return dialer.Dial("tcp", address)
}
